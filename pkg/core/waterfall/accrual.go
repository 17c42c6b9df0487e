package waterfall

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccrualPeriod is how often preferred return is credited.
type AccrualPeriod string

const (
	Monthly AccrualPeriod = "monthly"
	Annual  AccrualPeriod = "annual"
)

// AccrualRule is the project's preferred-return terms.
type AccrualRule struct {
	RatePct float64       `json:"rate_pct"` // annual, e.g. 8
	Period  AccrualPeriod `json:"period"`
}

// Validate rejects negative rates and unknown periods.
func (r AccrualRule) Validate() error {
	if r.RatePct < 0 {
		return &InvalidStateError{Field: "preferred_rate_pct", Reason: fmt.Sprintf("%v is negative", r.RatePct)}
	}
	if r.Period != Monthly && r.Period != Annual {
		return &InvalidStateError{Field: "accrual_period", Reason: fmt.Sprintf("unknown period %q", r.Period)}
	}
	return nil
}

// periodRate is the fraction of outstanding capital credited per period.
func (r AccrualRule) periodRate() decimal.Decimal {
	rate := decimal.NewFromFloat(r.RatePct).Div(hundred)
	if r.Period == Monthly {
		return rate.Div(decimal.NewFromInt(12))
	}
	return rate
}

// Accrue credits periods of preferred return on each investor's outstanding capital and
// moves AccruedThrough to through. Each period's credit is rounded to cents. Accrual never
// compounds: it reads outstanding capital, not accrued preferred.
func Accrue(s State, rule AccrualRule, periods int, through time.Time) (State, error) {
	if err := rule.Validate(); err != nil {
		return s, err
	}
	if periods < 0 {
		return s, &InvalidStateError{Field: "periods", Reason: fmt.Sprintf("%d is negative", periods)}
	}

	next := s.Clone()
	rate := rule.periodRate()
	n := decimal.NewFromInt(int64(periods))
	for i, inv := range next.Investors {
		perPeriod := inv.OutstandingCapital.Mul(rate).Round(2)
		next.Investors[i].AccruedPreferred = inv.AccruedPreferred.Add(perPeriod.Mul(n))
	}
	next.AccruedThrough = through
	return next, nil
}

// PeriodsBetween counts whole accrual periods from from to to, and returns the boundary
// the count reaches. Calendar months are counted by month boundaries, ignoring days.
func PeriodsBetween(from, to time.Time, period AccrualPeriod) (int, time.Time) {
	from = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months <= 0 {
		return 0, from
	}
	if period == Annual {
		years := months / 12
		return years, from.AddDate(years, 0, 0)
	}
	return months, from.AddDate(0, months, 0)
}
