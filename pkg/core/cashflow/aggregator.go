package cashflow

import (
	"deal_proforma/pkg/core/series"
)

// Input holds the line-item rows of every category.
type Input struct {
	Horizon       int
	Labels        []string
	Revenue       []Row
	SoftCosts     []Row
	HardCosts     []Row
	CarryingCosts []Row
	Funding       []Row
}

func (in Input) lines(name CategoryName) []Row {
	switch name {
	case Revenue:
		return in.Revenue
	case SoftCosts:
		return in.SoftCosts
	case HardCosts:
		return in.HardCosts
	case CarryingCosts:
		return in.CarryingCosts
	}
	return nil
}

// Aggregate sums the line items into category subtotals, the Total row and the financing rows.
// It is plain addition; an empty category yields a zero subtotal.
func Aggregate(in Input) *Grid {
	g := &Grid{
		Horizon:    in.Horizon,
		Labels:     in.Labels,
		Categories: make([]Category, 0, len(Order)),
	}

	total := series.New(in.Horizon)
	for _, name := range Order {
		lines := in.lines(name)
		subtotal := series.New(in.Horizon)
		kept := make([]Row, 0, len(lines))
		for _, r := range lines {
			subtotal.AddInPlace(r.Values)
			kept = append(kept, NewRow(r.Name, r.Values.Clone()))
		}

		if name.IsExpense() {
			total = total.Minus(subtotal)
		} else {
			total.AddInPlace(subtotal)
		}

		g.Categories = append(g.Categories, Category{
			Name:     name,
			Lines:    kept,
			Subtotal: NewRow("Total "+string(name), subtotal),
		})
	}

	funding := series.New(in.Horizon)
	for _, r := range in.Funding {
		funding.AddInPlace(r.Values)
	}

	net := total.Plus(funding)
	g.Total = NewRow("Total", total)
	g.Funding = NewRow("Loan Funding", funding)
	g.NetCashflow = NewRow("Net Cashflow", net)
	g.Cumulative = Row{Name: "Cumulative", Values: net.Cumulative(), Total: net.Sum()}
	return g
}
