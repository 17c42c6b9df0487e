// Package cashflow composes line-item vectors into the category-grouped monthly grid.
package cashflow

import (
	"deal_proforma/pkg/core/series"
)

// CategoryName identifies a grid section.
type CategoryName string

const (
	Revenue       CategoryName = "Revenue"
	SoftCosts     CategoryName = "Soft Costs"
	HardCosts     CategoryName = "Hard Costs"
	CarryingCosts CategoryName = "Carrying Costs"
)

// Order is the display order of the grid sections.
var Order = []CategoryName{Revenue, SoftCosts, HardCosts, CarryingCosts}

// IsExpense reports whether the category is subtracted in the Total row.
func (c CategoryName) IsExpense() bool {
	return c != Revenue
}

// Row is a named monthly vector with its horizon total.
type Row struct {
	Name   string        `json:"name"`
	Values series.Vector `json:"values"`
	Total  float64       `json:"total"`
}

// NewRow builds a row and computes its total.
func NewRow(name string, values series.Vector) Row {
	return Row{Name: name, Values: values, Total: values.Sum()}
}

// Category is one grid section: its line items and their subtotal.
type Category struct {
	Name     CategoryName `json:"name"`
	Lines    []Row        `json:"lines"`
	Subtotal Row          `json:"subtotal"`
}

// Grid is the full projection. Total is revenue less every expense category; Funding holds
// loan proceeds, which NetCashflow adds back.
type Grid struct {
	Horizon     int        `json:"horizon"`
	Labels      []string   `json:"labels"`
	Categories  []Category `json:"categories"`
	Total       Row        `json:"total"`
	Funding     Row        `json:"funding"`
	NetCashflow Row        `json:"net_cashflow"`
	Cumulative  Row        `json:"cumulative"`
}

// Category returns the named section, or nil.
func (g *Grid) Category(name CategoryName) *Category {
	for i := range g.Categories {
		if g.Categories[i].Name == name {
			return &g.Categories[i]
		}
	}
	return nil
}

// Line finds a line item by category and name.
func (g *Grid) Line(category CategoryName, name string) (Row, bool) {
	c := g.Category(category)
	if c == nil {
		return Row{}, false
	}
	for _, r := range c.Lines {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}
