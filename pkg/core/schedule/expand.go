package schedule

import (
	"deal_proforma/pkg/core/series"

	"github.com/shopspring/decimal"
)

// Expand turns an entry into a horizon-length vector whose months sum to TotalAmount.
//
// Even splits post the amount truncated to cents in every month and give the remainder to
// the last month, so 100 over three months is 33.33, 33.33, 33.34. Percentage splits round
// each month to cents and reconcile the remainder the same way.
func Expand(e Entry, horizon int) (series.Vector, error) {
	if err := Validate(e, horizon); err != nil {
		return nil, err
	}

	out := series.New(horizon)
	total := decimal.NewFromFloat(e.TotalAmount)

	switch s := e.Schedule.(type) {
	case Single:
		out[s.Month] = e.TotalAmount

	case Range:
		months := make([]int, 0, s.End-s.Start+1)
		for m := s.Start; m <= s.End; m++ {
			months = append(months, m)
		}
		post(out, months, allocate(total, s.Percentages, len(months), len(months)-1))

	case MultiMonth:
		post(out, s.Months, allocate(total, s.Percentages, len(s.Months), latest(s.Months)))
	}
	return out, nil
}

// MustExpand is Expand for entries already validated by the caller.
func MustExpand(e Entry, horizon int) series.Vector {
	v, err := Expand(e, horizon)
	if err != nil {
		panic(err)
	}
	return v
}

func post(out series.Vector, months []int, amounts []decimal.Decimal) {
	for i, m := range months {
		out[m] += amounts[i].InexactFloat64()
	}
}

// allocate splits total into n cent-rounded parts; position remainderAt absorbs the rounding.
func allocate(total decimal.Decimal, pcts []float64, n, remainderAt int) []decimal.Decimal {
	parts := make([]decimal.Decimal, n)
	hundred := decimal.NewFromInt(100)
	var each decimal.Decimal
	if pcts == nil {
		each = total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	}

	allocated := decimal.Zero
	for i := 0; i < n; i++ {
		if i == remainderAt {
			continue
		}
		if pcts == nil {
			parts[i] = each
		} else {
			parts[i] = total.Mul(decimal.NewFromFloat(pcts[i])).Div(hundred).Round(2)
		}
		allocated = allocated.Add(parts[i])
	}
	parts[remainderAt] = total.Sub(allocated)
	return parts
}

func latest(months []int) int {
	idx := 0
	for i, m := range months {
		if m > months[idx] {
			idx = i
		}
	}
	return idx
}
