// Package revenue computes net monthly income per revenue line.
//
// Each line earns nothing before it starts, ramps linearly to its stabilized net rent and
// stays flat afterwards:
//
//	netRent = base × (1 - vacancy/100)
//	m <  start           → 0
//	m >= stabilized      → netRent
//	otherwise            → netRent × (m - start) / (stabilized - start)
package revenue

import (
	"fmt"
	"math"

	"deal_proforma/pkg/core/series"
	"deal_proforma/pkg/core/timeline"
)

// Line is one income line (a unit type, a parking lease, a retail bay).
type Line struct {
	Name              string  `json:"name"`
	BaseMonthlyAmount float64 `json:"base_monthly_amount"`
	VacancyPct        float64 `json:"vacancy_pct"` // 0-100
	// StartMonth overrides the project's leasing start. Nil means "at leasing start".
	StartMonth *int `json:"start_month,omitempty"`
}

// InvalidLineError reports a revenue line rejected before the ramp runs.
type InvalidLineError struct {
	Line   string
	Field  string
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("invalid revenue line %q: %s: %s", e.Line, e.Field, e.Reason)
}

// NetRent returns the stabilized monthly income after vacancy.
func (l Line) NetRent() float64 {
	return l.BaseMonthlyAmount * (1 - l.VacancyPct/100)
}

// EffectiveStart resolves the month the line begins ramping.
func (l Line) EffectiveStart(tl timeline.Timeline) int {
	if l.StartMonth != nil {
		return *l.StartMonth
	}
	return tl.LeasingStartMonth
}

// Validate checks vacancy bounds and the start override.
func (l Line) Validate(tl timeline.Timeline) error {
	if math.IsNaN(l.BaseMonthlyAmount) || math.IsInf(l.BaseMonthlyAmount, 0) {
		return &InvalidLineError{Line: l.Name, Field: "base_monthly_amount", Reason: "must be a finite number"}
	}
	if l.VacancyPct < 0 || l.VacancyPct > 100 {
		return &InvalidLineError{Line: l.Name, Field: "vacancy_pct", Reason: fmt.Sprintf("%v outside [0,100]", l.VacancyPct)}
	}
	if l.StartMonth != nil && !tl.InHorizon(*l.StartMonth) {
		return &InvalidLineError{Line: l.Name, Field: "start_month", Reason: fmt.Sprintf("%d outside [0,%d]", *l.StartMonth, tl.Horizon-1)}
	}
	return nil
}

// Ramp returns the line's monthly net revenue across the timeline's horizon.
func Ramp(l Line, tl timeline.Timeline) (series.Vector, error) {
	if err := l.Validate(tl); err != nil {
		return nil, err
	}

	out := series.New(tl.Horizon)
	net := l.NetRent()
	start := l.EffectiveStart(tl)
	stabilized := tl.StabilizedMonth

	for m := range out {
		out[m] = ValueAt(net, m, start, stabilized)
	}
	return out, nil
}

// ValueAt is the ramp formula for one month. start == stabilized means full value at start.
func ValueAt(netRent float64, m, start, stabilized int) float64 {
	switch {
	case m < start:
		return 0
	case m >= stabilized:
		return netRent
	default:
		span := stabilized - start
		if span <= 0 {
			return netRent
		}
		return netRent * float64(m-start) / float64(span)
	}
}

// Total sums the ramps of every line.
func Total(lines []Line, tl timeline.Timeline) (series.Vector, error) {
	total := series.New(tl.Horizon)
	for _, l := range lines {
		v, err := Ramp(l, tl)
		if err != nil {
			return nil, err
		}
		total.AddInPlace(v)
	}
	return total, nil
}
