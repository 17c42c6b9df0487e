package waterfall

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// HoldingTolerance is how far holding percentages may drift from 100 in total.
var HoldingTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// ValidateEvent rejects unknown sources, non-positive or sub-cent amounts and missing timestamps.
func ValidateEvent(ev Event) error {
	fail := func(field, format string, args ...any) error {
		return &InvalidEventError{EventID: ev.ID, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if !ev.Source.Valid() {
		return fail("source", "unknown source %q", ev.Source)
	}
	if !ev.Amount.IsPositive() {
		return fail("amount", "must be positive, got %s", ev.Amount)
	}
	if !ev.Amount.Equal(ev.Amount.Round(2)) {
		return fail("amount", "%s has fractional cents", ev.Amount)
	}
	if ev.At.IsZero() {
		return fail("at", "timestamp required")
	}
	if ev.Month < 0 {
		return fail("month", "%d is negative", ev.Month)
	}
	return nil
}

// Validate checks the investor set: unique IDs, no negative balances and holding
// percentages summing to 100.
func (s State) Validate() error {
	if len(s.Investors) == 0 {
		return &InvalidStateError{Field: "investors", Reason: "no investors"}
	}

	seen := make(map[string]bool, len(s.Investors))
	holdings := decimal.Zero
	for _, inv := range s.Investors {
		if inv.ID == "" {
			return &InvalidStateError{Field: "id", Reason: "investor without an id"}
		}
		if seen[inv.ID] {
			return &InvalidStateError{InvestorID: inv.ID, Field: "id", Reason: "duplicate investor"}
		}
		seen[inv.ID] = true

		for _, f := range []struct {
			name  string
			value decimal.Decimal
		}{
			{"capital_contributed", inv.CapitalContributed},
			{"holding_pct", inv.HoldingPct},
			{"outstanding_capital", inv.OutstandingCapital},
			{"accrued_preferred", inv.AccruedPreferred},
		} {
			if f.value.IsNegative() {
				return &InvalidStateError{InvestorID: inv.ID, Field: f.name, Reason: fmt.Sprintf("negative value %s", f.value)}
			}
		}
		holdings = holdings.Add(inv.HoldingPct)
	}

	if holdings.Sub(hundred).Abs().GreaterThan(HoldingTolerance) {
		return &InvalidStateError{Field: "holding_pct", Reason: fmt.Sprintf("holdings sum to %s, want 100", holdings)}
	}
	return nil
}
