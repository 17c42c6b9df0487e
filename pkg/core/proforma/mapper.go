package proforma

import (
	"fmt"

	"deal_proforma/pkg/core/carrying"
	"deal_proforma/pkg/core/cashflow"
	"deal_proforma/pkg/core/loan"
	"deal_proforma/pkg/core/revenue"
	"deal_proforma/pkg/core/schedule"
	"deal_proforma/pkg/core/timeline"
	"deal_proforma/pkg/models"
)

// MapDeal converts stored rows into engine inputs, resolving the timeline's calendar dates
// into month offsets and the payment_mode shape into schedule variants.
func MapDeal(d models.Deal, horizon int) (Input, error) {
	tl, err := timeline.FromDates(
		d.Project.ClosingDate.Time,
		d.Project.LeasingStartDate.Time,
		d.Project.StabilizedDate.Time,
		horizon,
	)
	if err != nil {
		return Input{}, err
	}

	in := Input{Timeline: tl}

	for _, r := range d.Revenues {
		line := revenue.Line{
			Name:              r.Name,
			BaseMonthlyAmount: r.BaseMonthlyAmount,
			VacancyPct:        r.VacancyPct,
		}
		if !r.AtLeasingStart && r.StartMonth != nil {
			start := *r.StartMonth
			line.StartMonth = &start
		}
		in.Revenues = append(in.Revenues, line)
	}

	for _, c := range d.Costs {
		item, err := mapCostRow(c)
		if err != nil {
			return Input{}, err
		}
		in.Scheduled = append(in.Scheduled, item)
	}

	for _, c := range d.Carrying {
		kind := carrying.Kind(c.Kind)
		if kind == "" {
			kind = carrying.Other
		}
		in.Carrying = append(in.Carrying, carrying.Entry{
			Name:       c.Name,
			Kind:       kind,
			Amount:     c.Amount,
			Interval:   carrying.Interval(c.Interval),
			StartMonth: c.StartMonth,
			EndMonth:   c.EndMonth,
			RevenuePct: c.RevenuePct,
		})
	}

	for _, l := range d.Loans {
		in.Loans = append(in.Loans, loan.Terms{
			Name:              l.Name,
			Mode:              loan.Mode(l.Mode),
			Principal:         l.Principal,
			AnnualRatePct:     l.AnnualRatePct,
			TermMonths:        l.TermMonths,
			FundingMonth:      l.FundingMonth,
			FirstPaymentMonth: l.FirstPaymentMonth,
		})
	}

	return in, nil
}

func mapCostRow(c models.CostRow) (ScheduledItem, error) {
	category, err := mapCategory(c)
	if err != nil {
		return ScheduledItem{}, err
	}
	spec, err := SpecFromRow(c)
	if err != nil {
		return ScheduledItem{}, err
	}
	return ScheduledItem{
		Category: category,
		Entry:    schedule.Entry{Name: c.Name, TotalAmount: c.Amount, Schedule: spec},
	}, nil
}

func mapCategory(c models.CostRow) (cashflow.CategoryName, error) {
	switch c.Category {
	case "hard", "":
		return cashflow.HardCosts, nil
	case "soft":
		return cashflow.SoftCosts, nil
	case "revenue":
		return cashflow.Revenue, nil
	}
	return "", &schedule.InvalidScheduleError{
		Entry:  c.Name,
		Field:  "category",
		Reason: fmt.Sprintf("unknown category %q", c.Category),
	}
}

// SpecFromRow builds the schedule variant for a stored row. A mode missing its required
// fields is rejected rather than defaulted.
func SpecFromRow(c models.CostRow) (schedule.Spec, error) {
	pcts := c.Percentages
	if len(pcts) == 0 {
		pcts = nil
	}
	missing := func(field string) error {
		return &schedule.InvalidScheduleError{
			Entry:  c.Name,
			Field:  field,
			Reason: fmt.Sprintf("required for payment_mode %q", c.PaymentMode),
		}
	}

	switch c.PaymentMode {
	case schedule.KindSingle:
		if c.Month == nil {
			return nil, missing("month")
		}
		return schedule.Single{Month: *c.Month}, nil

	case schedule.KindRange:
		if c.StartMonth == nil {
			return nil, missing("start_month")
		}
		if c.EndMonth == nil {
			return nil, missing("end_month")
		}
		return schedule.Range{Start: *c.StartMonth, End: *c.EndMonth, Percentages: pcts}, nil

	case schedule.KindMultiMonth:
		if len(c.Months) == 0 {
			return nil, missing("months")
		}
		return schedule.MultiMonth{Months: c.Months, Percentages: pcts}, nil
	}

	return nil, &schedule.InvalidScheduleError{
		Entry:  c.Name,
		Field:  "payment_mode",
		Reason: fmt.Sprintf("unknown payment_mode %q", c.PaymentMode),
	}
}
