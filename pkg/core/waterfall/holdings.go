package waterfall

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DeriveHoldings computes holding percentages from contributions: each LP holds
// capital / totalProjectCost × lpSharePct, and the GPs split the remainder pro-rata by GP
// capital (equally when no GP contributed). Percentages are rounded to four places and the
// rounding residue goes to the largest GP so the set sums to exactly 100. The result is a
// snapshot; the waterfall reads HoldingPct and never recomputes it.
func DeriveHoldings(totalProjectCost, lpSharePct decimal.Decimal, investors []Investor) ([]Investor, error) {
	if !totalProjectCost.IsPositive() {
		return nil, &InvalidStateError{Field: "total_project_cost", Reason: "must be positive"}
	}
	if lpSharePct.IsNegative() || lpSharePct.GreaterThan(hundred) {
		return nil, &InvalidStateError{Field: "lp_share_pct", Reason: fmt.Sprintf("%s outside [0,100]", lpSharePct)}
	}

	out := append([]Investor(nil), investors...)
	lpTotal := decimal.Zero
	var gps []int
	gpCapital := decimal.Zero
	for i, inv := range out {
		switch inv.Role {
		case LP:
			pct := inv.CapitalContributed.Div(totalProjectCost).Mul(lpSharePct).Round(4)
			out[i].HoldingPct = pct
			lpTotal = lpTotal.Add(pct)
		case GP:
			gps = append(gps, i)
			gpCapital = gpCapital.Add(inv.CapitalContributed)
		default:
			return nil, &InvalidStateError{InvestorID: inv.ID, Field: "role", Reason: fmt.Sprintf("unknown role %q", inv.Role)}
		}
	}

	promote := hundred.Sub(lpTotal)
	if promote.IsNegative() {
		return nil, &InvalidStateError{Field: "holding_pct", Reason: fmt.Sprintf("LP holdings sum to %s", lpTotal)}
	}
	if len(gps) == 0 {
		if promote.GreaterThan(HoldingTolerance) {
			return nil, &InvalidStateError{Field: "role", Reason: fmt.Sprintf("no GP to hold the remaining %s%%", promote)}
		}
		return out, nil
	}

	largest := gps[0]
	assigned := decimal.Zero
	for _, i := range gps {
		var pct decimal.Decimal
		if gpCapital.IsPositive() {
			pct = promote.Mul(out[i].CapitalContributed).Div(gpCapital).Round(4)
		} else {
			pct = promote.Div(decimal.NewFromInt(int64(len(gps)))).Round(4)
		}
		out[i].HoldingPct = pct
		assigned = assigned.Add(pct)
		if out[i].CapitalContributed.GreaterThan(out[largest].CapitalContributed) {
			largest = i
		}
	}
	out[largest].HoldingPct = out[largest].HoldingPct.Add(promote.Sub(assigned))
	return out, nil
}
