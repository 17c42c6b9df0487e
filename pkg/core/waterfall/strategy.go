package waterfall

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DISTRIBUTION STRATEGY INTERFACE
// =============================================================================

// Strategy allocates one event amount across investors. Distribute works on a private
// copy of the investors and may reduce their running balances in place.
type Strategy interface {
	// Name identifies the strategy on the resulting distribution
	Name() string

	// Distribute returns one payout per investor, in investor order
	Distribute(investors []Investor, amount decimal.Decimal) []Payout
}

// =============================================================================
// BUILT-IN STRATEGIES
// =============================================================================

// FullWaterfall pays accrued preferred return, then outstanding capital, both pro-rata by
// capital contribution, then splits what is left by holding percentage.
type FullWaterfall struct{}

func (FullWaterfall) Name() string { return "full_waterfall" }

func (FullWaterfall) Distribute(investors []Investor, amount decimal.Decimal) []Payout {
	lines := newLines(investors)
	capital := make([]decimal.Decimal, len(investors))
	accrued := make([]decimal.Decimal, len(investors))
	outstanding := make([]decimal.Decimal, len(investors))
	for i, inv := range investors {
		capital[i] = inv.CapitalContributed
		accrued[i] = inv.AccruedPreferred
		outstanding[i] = inv.OutstandingCapital
	}
	remaining := amount

	// 1. Preferred return, capped at what each investor has accrued
	pref := allocate(remaining, capital, accrued)
	for i, paid := range pref {
		lines[i].PreferredPaid = paid
		investors[i].AccruedPreferred = investors[i].AccruedPreferred.Sub(paid)
	}
	remaining = remaining.Sub(sum(pref))

	// 2. Return of capital, capped at each investor's outstanding balance
	principal := allocate(remaining, capital, outstanding)
	for i, paid := range principal {
		lines[i].PrincipalPaid = paid
		investors[i].OutstandingCapital = investors[i].OutstandingCapital.Sub(paid)
	}
	remaining = remaining.Sub(sum(principal))

	// 3. Profit split
	splitProfit(investors, lines, remaining)
	return lines
}

// ProfitSplitOnly pays the whole amount by holding percentage and leaves every running
// balance untouched. It is the NOI "distribution mode".
type ProfitSplitOnly struct{}

func (ProfitSplitOnly) Name() string { return "profit_split" }

func (ProfitSplitOnly) Distribute(investors []Investor, amount decimal.Decimal) []Payout {
	lines := newLines(investors)
	splitProfit(investors, lines, amount)
	return lines
}

func newLines(investors []Investor) []Payout {
	lines := make([]Payout, len(investors))
	for i, inv := range investors {
		lines[i] = Payout{
			InvestorID:    inv.ID,
			PreferredPaid: decimal.Zero,
			PrincipalPaid: decimal.Zero,
			ProfitPaid:    decimal.Zero,
		}
	}
	return lines
}

// splitProfit pays amount by holding percentage; the cent residue lands on the largest holder.
func splitProfit(investors []Investor, lines []Payout, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	holdings := make([]decimal.Decimal, len(investors))
	for i, inv := range investors {
		holdings[i] = inv.HoldingPct
	}
	for i, paid := range allocate(amount, holdings, nil) {
		lines[i].ProfitPaid = paid
	}
}

// =============================================================================
// POLICY
// =============================================================================

// NOIMode is the project-level choice of how NOI events are paid.
type NOIMode string

const (
	// NOIDistribution pays NOI straight by holding percentage.
	NOIDistribution NOIMode = "distribution"
	// NOICapitalReturn runs NOI through the full preferred, capital, profit waterfall.
	NOICapitalReturn NOIMode = "capital_return"
)

// ParseNOIMode accepts the configured mode name; empty means distribution.
func ParseNOIMode(s string) (NOIMode, error) {
	switch NOIMode(s) {
	case "", NOIDistribution:
		return NOIDistribution, nil
	case NOICapitalReturn:
		return NOICapitalReturn, nil
	}
	return "", fmt.Errorf("unknown NOI mode %q", s)
}

// Policy selects the strategy for each event source.
type Policy struct {
	NOIMode NOIMode `json:"noi_mode"`
}

// StrategyFor returns the strategy that pays events of the given source.
// Refinance and sale proceeds always run the full waterfall.
func (p Policy) StrategyFor(src Source) Strategy {
	if src == NOI && p.NOIMode != NOICapitalReturn {
		return ProfitSplitOnly{}
	}
	return FullWaterfall{}
}
