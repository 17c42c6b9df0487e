// Package waterfall allocates capital-return events across a project's investors.
//
// Money is carried as decimal.Decimal and every payout is a whole number of cents, so the
// lines of a distribution always sum to the event amount exactly. The engine never mutates
// the State it is given: each step returns the next state and the caller persists it.
package waterfall

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the investor's partnership role.
type Role string

const (
	GP Role = "gp"
	LP Role = "lp"
)

// Source is what produced the cash being distributed.
type Source string

const (
	Refinance Source = "refinance"
	Sale      Source = "sale"
	NOI       Source = "noi"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case Refinance, Sale, NOI:
		return true
	}
	return false
}

// Investor is one investor's contribution, snapshot holding and running balances.
type Investor struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Role               Role            `json:"role"`
	CapitalContributed decimal.Decimal `json:"capital_contributed"`
	HoldingPct         decimal.Decimal `json:"holding_pct"` // 0-100
	OutstandingCapital decimal.Decimal `json:"outstanding_capital"`
	AccruedPreferred   decimal.Decimal `json:"accrued_preferred"`
}

// State is the mutable part of a project's waterfall: the investors' running balances plus
// the high-water marks that keep event application and accrual in order.
type State struct {
	ProjectID      string     `json:"project_id"`
	Investors      []Investor `json:"investors"`
	LastEventAt    time.Time  `json:"last_event_at,omitempty"`
	AccruedThrough time.Time  `json:"accrued_through,omitempty"`
}

// Clone copies the investor slice so the copy can be changed independently.
func (s State) Clone() State {
	out := s
	out.Investors = append([]Investor(nil), s.Investors...)
	return out
}

// TotalCapital sums every investor's contribution.
func (s State) TotalCapital() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range s.Investors {
		total = total.Add(inv.CapitalContributed)
	}
	return total
}

// Investor finds an investor by ID.
func (s State) Investor(id string) (Investor, bool) {
	for _, inv := range s.Investors {
		if inv.ID == id {
			return inv, true
		}
	}
	return Investor{}, false
}

// Event is a capital-return event. At orders events; Month is the projection month it
// belongs to and is informational.
type Event struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Source    Source          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Month     int             `json:"month"`
	At        time.Time       `json:"at"`
}

// Payout is what one investor receives from one event, split by waterfall step.
type Payout struct {
	InvestorID    string          `json:"investor_id"`
	PreferredPaid decimal.Decimal `json:"preferred_paid"`
	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	ProfitPaid    decimal.Decimal `json:"profit_paid"`
}

// Total is the investor's whole payout.
func (p Payout) Total() decimal.Decimal {
	return p.PreferredPaid.Add(p.PrincipalPaid).Add(p.ProfitPaid)
}

// Distribution is the result of applying one event.
type Distribution struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	EventID   string          `json:"event_id"`
	Source    Source          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Strategy  string          `json:"strategy"`
	At        time.Time       `json:"at"`
	Lines     []Payout        `json:"lines"`
}

// Total sums every line.
func (d *Distribution) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Line returns the payout of one investor.
func (d *Distribution) Line(investorID string) (Payout, bool) {
	for _, l := range d.Lines {
		if l.InvestorID == investorID {
			return l, true
		}
	}
	return Payout{}, false
}
