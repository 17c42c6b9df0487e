// Package carrying expands interval-based recurring costs into monthly vectors.
//
// The full amount posts on every occurrence; nothing is prorated at the boundaries.
package carrying

import (
	"fmt"
	"math"

	"deal_proforma/pkg/core/schedule"
	"deal_proforma/pkg/core/series"
)

// Interval is how often a carrying cost recurs.
type Interval string

const (
	Monthly    Interval = "monthly"
	Quarterly  Interval = "quarterly"
	Semiannual Interval = "semiannual"
	Yearly     Interval = "yearly"
)

// PeriodMonths maps an interval to its length in months. Unknown intervals return 0.
func (i Interval) PeriodMonths() int {
	switch i {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Yearly:
		return 12
	}
	return 0
}

// Kind labels the carrying cost. Management rows may be revenue-based.
type Kind string

const (
	PropertyTax Kind = "property_tax"
	Insurance   Kind = "insurance"
	Management  Kind = "management"
	Other       Kind = "other"
)

// Entry is one recurring carrying cost.
type Entry struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Amount     float64  `json:"amount"`
	Interval   Interval `json:"interval"`
	StartMonth int      `json:"start_month"`
	EndMonth   *int     `json:"end_month,omitempty"` // nil runs to the end of the horizon
	// RevenuePct, when set, replaces Amount with a share of that month's revenue.
	RevenuePct float64 `json:"revenue_pct,omitempty"`
}

// LastMonth resolves the inclusive end month.
func (e Entry) LastMonth(horizon int) int {
	if e.EndMonth != nil {
		return *e.EndMonth
	}
	return horizon - 1
}

// IsRevenueBased reports whether the entry posts a share of revenue instead of a flat amount.
func (e Entry) IsRevenueBased() bool {
	return e.RevenuePct != 0
}

// Validate checks the interval and the month window.
func (e Entry) Validate(horizon int) error {
	fail := func(field, format string, args ...any) error {
		return &schedule.InvalidScheduleError{Entry: e.Name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if e.Interval.PeriodMonths() == 0 {
		return fail("interval", "unknown interval %q", e.Interval)
	}
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return fail("amount", "must be a finite number")
	}
	if e.RevenuePct < 0 || e.RevenuePct > 100 {
		return fail("revenue_pct", "%v outside [0,100]", e.RevenuePct)
	}
	if e.StartMonth < 0 || e.StartMonth >= horizon {
		return fail("start_month", "%d outside [0,%d]", e.StartMonth, horizon-1)
	}
	end := e.LastMonth(horizon)
	if end < 0 || end >= horizon {
		return fail("end_month", "%d outside [0,%d]", end, horizon-1)
	}
	if end < e.StartMonth {
		return fail("end_month", "%d is before start %d", end, e.StartMonth)
	}
	return nil
}

// Occurrences returns the months the entry posts in.
func (e Entry) Occurrences(horizon int) []int {
	period := e.Interval.PeriodMonths()
	if period == 0 {
		return nil
	}
	var months []int
	for m := e.StartMonth; m <= e.LastMonth(horizon) && m < horizon; m += period {
		months = append(months, m)
	}
	return months
}

// Normalize expands a flat-amount entry into a monthly vector.
func Normalize(e Entry, horizon int) (series.Vector, error) {
	return NormalizeWithRevenue(e, horizon, nil)
}

// NormalizeWithRevenue expands an entry; revenue-based entries read the given revenue vector.
// A revenue-based entry without a revenue vector posts nothing.
func NormalizeWithRevenue(e Entry, horizon int, revenue series.Vector) (series.Vector, error) {
	if err := e.Validate(horizon); err != nil {
		return nil, err
	}

	out := series.New(horizon)
	for _, m := range e.Occurrences(horizon) {
		if e.IsRevenueBased() {
			if m < len(revenue) {
				out[m] = revenue[m] * e.RevenuePct / 100
			}
			continue
		}
		out[m] = e.Amount
	}
	return out, nil
}
