// Package report renders a cashflow grid as a Markdown table, and that table as HTML.
// Numbers are formatted for the requested language; the grid itself stays unformatted.
package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"deal_proforma/pkg/core/cashflow"
	"deal_proforma/pkg/core/loan"
	"deal_proforma/pkg/core/series"
)

// Rollup chooses the column granularity.
type Rollup string

const (
	Monthly Rollup = "monthly"
	Annual  Rollup = "annual"
)

// Options controls the rendered table.
type Options struct {
	Title  string
	Lang   language.Tag // zero value renders American English
	Rollup Rollup
}

type column struct {
	label      string
	start, end int // [start, end)
}

func columns(g *cashflow.Grid, rollup Rollup) []column {
	var cols []column
	if rollup == Annual {
		for start, year := 0, 1; start < g.Horizon; start, year = start+12, year+1 {
			end := start + 12
			if end > g.Horizon {
				end = g.Horizon
			}
			cols = append(cols, column{label: fmt.Sprintf("Year %d", year), start: start, end: end})
		}
		return cols
	}
	for m := 0; m < g.Horizon; m++ {
		label := fmt.Sprintf("M%d", m)
		if m < len(g.Labels) {
			label = g.Labels[m]
		}
		cols = append(cols, column{label: label, start: m, end: m + 1})
	}
	return cols
}

type writer struct {
	b    strings.Builder
	p    *message.Printer
	cols []column
}

func (w *writer) amount(v float64) string {
	// Avoid rendering "-0.00" for tiny negative float residue.
	if v > -0.005 && v < 0.005 {
		v = 0
	}
	return w.p.Sprintf("%.2f", v)
}

func (w *writer) row(label string, values series.Vector, total float64, pointInTime bool) {
	w.b.WriteString("| ")
	w.b.WriteString(escape(label))
	for _, c := range w.cols {
		var v float64
		if pointInTime {
			v = values[c.end-1]
		} else {
			for m := c.start; m < c.end; m++ {
				v += values[m]
			}
		}
		w.b.WriteString(" | ")
		w.b.WriteString(w.amount(v))
	}
	w.b.WriteString(" | ")
	w.b.WriteString(w.amount(total))
	w.b.WriteString(" |\n")
}

func (w *writer) heading(label string) {
	w.b.WriteString("| **")
	w.b.WriteString(escape(label))
	w.b.WriteString("**")
	for range w.cols {
		w.b.WriteString(" |")
	}
	w.b.WriteString(" |\n")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Markdown renders the grid as a GitHub-flavored Markdown table: each category's lines and
// subtotal, then the Total, Loan Funding, Net Cashflow and Cumulative rows.
func Markdown(g *cashflow.Grid, opts Options) string {
	lang := opts.Lang
	if lang == language.Und {
		lang = language.AmericanEnglish
	}
	w := &writer{p: message.NewPrinter(lang), cols: columns(g, opts.Rollup)}

	if opts.Title != "" {
		w.b.WriteString("# " + opts.Title + "\n\n")
	}

	// 1. Header
	w.b.WriteString("| Line")
	for _, c := range w.cols {
		w.b.WriteString(" | " + c.label)
	}
	w.b.WriteString(" | Total |\n|---")
	for range w.cols {
		w.b.WriteString("|---:")
	}
	w.b.WriteString("|---:|\n")

	// 2. Categories
	for _, cat := range g.Categories {
		w.heading(string(cat.Name))
		for _, line := range cat.Lines {
			w.row(line.Name, line.Values, line.Total, false)
		}
		w.row("**"+cat.Subtotal.Name+"**", cat.Subtotal.Values, cat.Subtotal.Total, false)
	}

	// 3. Bottom lines
	w.row("**"+g.Total.Name+"**", g.Total.Values, g.Total.Total, false)
	w.row(g.Funding.Name, g.Funding.Values, g.Funding.Total, false)
	w.row("**"+g.NetCashflow.Name+"**", g.NetCashflow.Values, g.NetCashflow.Total, false)
	if g.Horizon > 0 {
		w.row(g.Cumulative.Name, g.Cumulative.Values, g.Cumulative.Values[g.Horizon-1], true)
	}
	return w.b.String()
}

// LoanTable renders a loan's full-term amortization table.
func LoanTable(s *loan.Schedule, lang language.Tag) string {
	if lang == language.Und {
		lang = language.AmericanEnglish
	}
	w := &writer{p: message.NewPrinter(lang)}

	w.b.WriteString("| Month | Payment | Interest | Principal | Balance |\n")
	w.b.WriteString("|---:|---:|---:|---:|---:|\n")
	for _, r := range s.Table {
		w.b.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			r.Month, w.amount(r.Payment), w.amount(r.Interest), w.amount(r.Principal), w.amount(r.Balance)))
	}
	return w.b.String()
}
