package loan

import (
	"deal_proforma/pkg/core/series"
)

// TableRow is one payment month of the amortization table.
type TableRow struct {
	Month     int     `json:"month"`
	Payment   float64 `json:"payment"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
	Balance   float64 `json:"balance"` // outstanding after this month's principal
}

// Schedule is a loan expanded over the projection horizon.
type Schedule struct {
	Terms     Terms         `json:"terms"`
	Interest  series.Vector `json:"interest"`
	Principal series.Vector `json:"principal"`
	Funding   series.Vector `json:"funding"`
	Table     []TableRow    `json:"table"`
}

// Amortize expands the terms into horizon-length vectors. The table covers the full term;
// the vectors are the part of it that falls inside the horizon.
func Amortize(t Terms, horizon int) (*Schedule, error) {
	if err := t.Validate(horizon); err != nil {
		return nil, err
	}

	table := buildTable(t)
	s := &Schedule{
		Terms:     t,
		Interest:  series.New(horizon),
		Principal: series.New(horizon),
		Funding:   series.New(horizon),
		Table:     table,
	}

	s.Funding.Set(t.FundingMonth, t.Principal)
	for _, row := range table {
		s.Interest.Add(row.Month, row.Interest)
		s.Principal.Add(row.Month, row.Principal)
	}
	return s, nil
}

// Table returns the full-term amortization table, independent of any horizon.
func Table(t Terms) ([]TableRow, error) {
	if err := t.Validate(0); err != nil {
		return nil, err
	}
	return buildTable(t), nil
}

func buildTable(t Terms) []TableRow {
	switch t.Mode {
	case InterestOnly:
		return interestOnlyTable(t)
	default:
		return amortizingTable(t)
	}
}

func amortizingTable(t Terms) []TableRow {
	r := t.MonthlyRate()
	n := t.TermMonths
	payment := LevelPayment(t.Principal, r, n)

	rows := make([]TableRow, 0, n)
	balance := t.Principal
	for k := 0; k < n && balance > 0; k++ {
		interest := balance * r
		principal := payment - interest
		// Last payment takes whatever balance is left so no rounding residue survives.
		if k == n-1 || principal > balance {
			principal = balance
		}
		balance -= principal
		if balance < 0 {
			balance = 0
		}
		rows = append(rows, TableRow{
			Month:     t.FirstPaymentMonth + k,
			Payment:   interest + principal,
			Interest:  interest,
			Principal: principal,
			Balance:   balance,
		})
	}
	return rows
}

func interestOnlyTable(t Terms) []TableRow {
	interest := t.Principal * t.MonthlyRate()
	payoff := t.PayoffMonth()

	rows := make([]TableRow, 0, payoff-t.FirstPaymentMonth+1)
	for m := t.FirstPaymentMonth; m <= payoff; m++ {
		row := TableRow{Month: m, Interest: interest, Balance: t.Principal}
		if m == payoff {
			row.Principal = t.Principal
			row.Balance = 0
		}
		row.Payment = row.Interest + row.Principal
		rows = append(rows, row)
	}
	return rows
}
