// Package proforma builds a project's monthly cashflow grid from its entry rows.
//
// The engine runs every calculator (schedules, revenue ramp, loan amortization, carrying
// costs) over immutable inputs and hands the resulting line items to the aggregator. It
// keeps no state between calls, so rebuilding from the same rows always yields the same grid.
package proforma

import (
	"fmt"

	"deal_proforma/pkg/core/carrying"
	"deal_proforma/pkg/core/cashflow"
	"deal_proforma/pkg/core/loan"
	"deal_proforma/pkg/core/revenue"
	"deal_proforma/pkg/core/schedule"
	"deal_proforma/pkg/core/series"
	"deal_proforma/pkg/core/timeline"
	"deal_proforma/pkg/models"
)

// ScheduledItem is a scheduled entry and the grid section it belongs to.
// A Revenue item is a one-time contribution posted on its schedule.
type ScheduledItem struct {
	Category cashflow.CategoryName
	Entry    schedule.Entry
}

// Input is everything the engine needs, already expressed in month offsets.
type Input struct {
	Timeline  timeline.Timeline
	Revenues  []revenue.Line
	Scheduled []ScheduledItem
	Carrying  []carrying.Entry
	Loans     []loan.Terms
}

// Projection is the built grid plus the loan schedules behind its financing lines.
type Projection struct {
	Grid  *cashflow.Grid   `json:"grid"`
	Loans []*loan.Schedule `json:"loans"`
}

// Engine builds projections over a fixed horizon.
type Engine struct {
	Horizon int
}

// NewEngine creates an engine; a non-positive horizon falls back to series.DefaultHorizon.
func NewEngine(horizon int) *Engine {
	if horizon <= 0 {
		horizon = series.DefaultHorizon
	}
	return &Engine{Horizon: horizon}
}

// Validate runs every input check without expanding anything.
func (e *Engine) Validate(in Input) error {
	if err := e.checkTimeline(in.Timeline); err != nil {
		return err
	}
	for _, l := range in.Revenues {
		if err := l.Validate(in.Timeline); err != nil {
			return err
		}
	}
	for _, item := range in.Scheduled {
		if err := schedule.Validate(item.Entry, e.Horizon); err != nil {
			return err
		}
	}
	for _, c := range in.Carrying {
		if err := c.Validate(e.Horizon); err != nil {
			return err
		}
	}
	for _, t := range in.Loans {
		if err := t.Validate(e.Horizon); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkTimeline(tl timeline.Timeline) error {
	if tl.Horizon != e.Horizon {
		return &timeline.InvalidTimelineError{
			Field:  "horizon",
			Reason: fmt.Sprintf("timeline horizon %d does not match engine horizon %d", tl.Horizon, e.Horizon),
		}
	}
	return tl.Validate()
}

// BuildDeal maps stored rows and builds their projection.
func (e *Engine) BuildDeal(d models.Deal) (*Projection, error) {
	in, err := MapDeal(d, e.Horizon)
	if err != nil {
		return nil, err
	}
	return e.Build(in)
}

// Build expands every input and aggregates the grid.
func (e *Engine) Build(in Input) (*Projection, error) {
	if err := e.Validate(in); err != nil {
		return nil, err
	}

	h := e.Horizon
	agg := cashflow.Input{
		Horizon: h,
		Labels:  in.Timeline.Calendar().Labels(),
	}

	// 1. Revenue: ramped lines, then one-time contributions
	revenueTotal := series.New(h)
	for _, l := range in.Revenues {
		v, err := revenue.Ramp(l, in.Timeline)
		if err != nil {
			return nil, err
		}
		revenueTotal.AddInPlace(v)
		agg.Revenue = append(agg.Revenue, cashflow.NewRow(l.Name, v))
	}

	// 2. Scheduled entries
	for _, item := range in.Scheduled {
		v, err := schedule.Expand(item.Entry, h)
		if err != nil {
			return nil, err
		}
		row := cashflow.NewRow(item.Entry.Name, v)
		switch item.Category {
		case cashflow.Revenue:
			revenueTotal.AddInPlace(v)
			agg.Revenue = append(agg.Revenue, row)
		case cashflow.SoftCosts:
			agg.SoftCosts = append(agg.SoftCosts, row)
		case cashflow.HardCosts:
			agg.HardCosts = append(agg.HardCosts, row)
		default:
			return nil, &schedule.InvalidScheduleError{
				Entry:  item.Entry.Name,
				Field:  "category",
				Reason: fmt.Sprintf("%q cannot hold scheduled entries", item.Category),
			}
		}
	}

	// 3. Carrying costs; management fees read the revenue built above
	for _, c := range in.Carrying {
		v, err := carrying.NormalizeWithRevenue(c, h, revenueTotal)
		if err != nil {
			return nil, err
		}
		agg.CarryingCosts = append(agg.CarryingCosts, cashflow.NewRow(c.Name, v))
	}

	// 4. Loans: interest and principal are carrying lines, proceeds are funding
	proj := &Projection{}
	for _, t := range in.Loans {
		s, err := loan.Amortize(t, h)
		if err != nil {
			return nil, err
		}
		proj.Loans = append(proj.Loans, s)
		agg.CarryingCosts = append(agg.CarryingCosts,
			cashflow.NewRow(t.Name+" Interest", s.Interest),
			cashflow.NewRow(t.Name+" Principal", s.Principal),
		)
		agg.Funding = append(agg.Funding, cashflow.NewRow(t.Name, s.Funding))
	}

	proj.Grid = cashflow.Aggregate(agg)
	return proj, nil
}
