// Package loan expands loan terms into monthly interest, principal and funding vectors.
package loan

import (
	"fmt"
	"math"

	"deal_proforma/pkg/core/series"
)

// MaxTermMonths bounds a loan's term (50 years).
const MaxTermMonths = 600

// Mode selects how the loan repays.
type Mode string

const (
	InterestOnly Mode = "interest_only"
	Amortizing   Mode = "amortizing"
)

// Terms describes one loan. Edits regenerate the whole schedule; nothing is patched in place.
type Terms struct {
	Name              string  `json:"name"`
	Mode              Mode    `json:"mode"`
	Principal         float64 `json:"principal"`
	AnnualRatePct     float64 `json:"annual_rate_pct"`
	TermMonths        int     `json:"term_months"`
	FundingMonth      int     `json:"funding_month"`
	FirstPaymentMonth int     `json:"first_payment_month"`
}

// InvalidLoanTermsError reports terms rejected before amortization.
type InvalidLoanTermsError struct {
	Loan   string
	Field  string
	Reason string
}

func (e *InvalidLoanTermsError) Error() string {
	return fmt.Sprintf("invalid loan terms %q: %s: %s", e.Loan, e.Field, e.Reason)
}

// Validate checks the terms. A horizon <= 0 skips the horizon checks, which is what the
// full-term amortization table wants.
func (t Terms) Validate(horizon int) error {
	fail := func(field, format string, args ...any) error {
		return &InvalidLoanTermsError{Loan: t.Name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	switch t.Mode {
	case InterestOnly, Amortizing:
	default:
		return fail("mode", "unknown mode %q", t.Mode)
	}
	if !(t.Principal > 0) || math.IsInf(t.Principal, 0) {
		return fail("principal", "must be positive, got %v", t.Principal)
	}
	if t.AnnualRatePct < 0 || math.IsNaN(t.AnnualRatePct) || math.IsInf(t.AnnualRatePct, 0) {
		return fail("annual_rate_pct", "must be zero or positive, got %v", t.AnnualRatePct)
	}
	if t.TermMonths <= 0 || t.TermMonths > MaxTermMonths {
		return fail("term_months", "must be within [1,%d], got %d", MaxTermMonths, t.TermMonths)
	}
	if t.FundingMonth < 0 {
		return fail("funding_month", "must not be negative, got %d", t.FundingMonth)
	}
	if t.FirstPaymentMonth < t.FundingMonth {
		return fail("first_payment_month", "%d is before funding month %d", t.FirstPaymentMonth, t.FundingMonth)
	}
	if horizon > series.MaxHorizon {
		return fail("horizon", "%d exceeds the %d-month maximum", horizon, series.MaxHorizon)
	}
	if horizon > 0 {
		if t.FundingMonth >= horizon {
			return fail("funding_month", "%d outside [0,%d]", t.FundingMonth, horizon-1)
		}
		if t.FirstPaymentMonth >= horizon {
			return fail("first_payment_month", "%d outside [0,%d]", t.FirstPaymentMonth, horizon-1)
		}
	}
	return nil
}

// MonthlyRate is the annual percentage rate divided into a monthly decimal rate.
func (t Terms) MonthlyRate() float64 {
	return t.AnnualRatePct / 100 / 12
}

// LevelPayment is the constant monthly payment that retires principal over n months at rate r.
// P = r·L / (1 - (1+r)^-n), or L/n when r is zero.
func LevelPayment(principal, r float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	if r == 0 {
		return principal / float64(n)
	}
	return r * principal / (1 - math.Pow(1+r, -float64(n)))
}

// PayoffMonth is the month the interest-only balloon posts. The loan is treated as repaid
// in the last month before the nominal term end (funding + term), never earlier than the
// first payment month.
func (t Terms) PayoffMonth() int {
	p := t.FundingMonth + t.TermMonths - 1
	if p < t.FirstPaymentMonth {
		p = t.FirstPaymentMonth
	}
	return p
}
