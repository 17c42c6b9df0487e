package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date is a calendar date carried as "2006-01-02" (or "2006-01") in deal documents.
type Date struct {
	time.Time
}

var dateLayouts = []string{"2006-01-02", "2006-01", time.RFC3339}

// ParseDate accepts the layouts the persistence layer emits.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// Project is the project record's timeline and cost basis.
type Project struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ClosingDate      Date    `json:"closing_date"`
	LeasingStartDate Date    `json:"leasing_start_date"`
	StabilizedDate   Date    `json:"stabilized_date"`
	TotalProjectCost float64 `json:"total_project_cost"`
}

// RevenueRow is an income line as stored.
type RevenueRow struct {
	Name              string  `json:"name"`
	BaseMonthlyAmount float64 `json:"base_monthly_amount"`
	VacancyPct        float64 `json:"vacancy_pct"`
	StartMonth        *int    `json:"start_month,omitempty"`
	AtLeasingStart    bool    `json:"at_leasing_start"`
}

// CostRow is a hard, soft or one-time revenue row in the stored payment_mode shape.
// Which optional fields are meaningful depends on PaymentMode:
//
//	single → Month
//	range  → StartMonth, EndMonth, Percentages (optional)
//	multi  → Months, Percentages (optional)
type CostRow struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"` // hard | soft | revenue
	Amount      float64   `json:"amount"`
	PaymentMode string    `json:"payment_mode"`
	Month       *int      `json:"month,omitempty"`
	StartMonth  *int      `json:"start_month,omitempty"`
	EndMonth    *int      `json:"end_month,omitempty"`
	Months      []int     `json:"months,omitempty"`
	Percentages []float64 `json:"percentages,omitempty"`
}

// CarryingRow is a recurring carrying cost (tax, insurance, management).
type CarryingRow struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Amount     float64 `json:"amount"`
	Interval   string  `json:"interval"`
	StartMonth int     `json:"start_month"`
	EndMonth   *int    `json:"end_month,omitempty"`
	RevenuePct float64 `json:"revenue_pct,omitempty"`
}

// LoanRow is a loan as stored.
type LoanRow struct {
	Name              string  `json:"name"`
	Mode              string  `json:"mode"`
	Principal         float64 `json:"principal"`
	AnnualRatePct     float64 `json:"annual_rate_pct"`
	TermMonths        int     `json:"term_months"`
	FundingMonth      int     `json:"funding_month"`
	FirstPaymentMonth int     `json:"first_payment_month"`
}

// InvestorRecord is an investor's capital and holding snapshot plus running balances.
type InvestorRecord struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Role               string          `json:"role"` // gp | lp
	CapitalContributed decimal.Decimal `json:"capital_contributed"`
	HoldingPct         decimal.Decimal `json:"holding_pct"`
	OutstandingCapital decimal.Decimal `json:"outstanding_capital"`
	AccruedPreferred   decimal.Decimal `json:"accrued_preferred"`
}

// Deal is the whole document the collaborator layer hands the engine.
type Deal struct {
	Project   Project          `json:"project"`
	Revenues  []RevenueRow     `json:"revenues"`
	Costs     []CostRow        `json:"costs"`
	Carrying  []CarryingRow    `json:"carrying"`
	Loans     []LoanRow        `json:"loans"`
	Investors []InvestorRecord `json:"investors,omitempty"`
}
