// Package store persists waterfall state: investor running balances, the distributions
// that changed them and the de-duplication marks for submitted events.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"deal_proforma/pkg/core/waterfall"
)

var (
	// ErrProjectNotFound is returned for a project with no stored investor state.
	ErrProjectNotFound = errors.New("project not found")
	// ErrDuplicateEvent is returned when an event ID already produced a distribution.
	ErrDuplicateEvent = errors.New("event already distributed")
)

// UpdateFunc receives the locked state of a project and returns the distribution to record
// (nil for none) and the state to write back. Returning an error aborts the transaction.
type UpdateFunc func(state waterfall.State) (*waterfall.Distribution, waterfall.State, error)

// Ledger is the persistence contract of the distribution service. Update runs fn inside one
// transaction, so the distribution lines and the new balances land together or not at all.
type Ledger interface {
	SaveState(ctx context.Context, state waterfall.State) error
	LoadState(ctx context.Context, projectID string) (waterfall.State, error)
	Update(ctx context.Context, projectID string, fn UpdateFunc) (*waterfall.Distribution, error)
	ListDistributions(ctx context.Context, projectID string) ([]*waterfall.Distribution, error)
	ListProjects(ctx context.Context) ([]string, error)
	Close() error
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s %q: %w", field, s, err)
	}
	return d, nil
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// investorFields decodes the four stored amounts of an investor.
func investorFields(inv *waterfall.Investor, capital, holding, outstanding, accrued string) error {
	var err error
	if inv.CapitalContributed, err = parseDecimal("capital_contributed", capital); err != nil {
		return err
	}
	if inv.HoldingPct, err = parseDecimal("holding_pct", holding); err != nil {
		return err
	}
	if inv.OutstandingCapital, err = parseDecimal("outstanding_capital", outstanding); err != nil {
		return err
	}
	if inv.AccruedPreferred, err = parseDecimal("accrued_preferred", accrued); err != nil {
		return err
	}
	return nil
}

func payoutFields(p *waterfall.Payout, pref, principal, profit string) error {
	var err error
	if p.PreferredPaid, err = parseDecimal("preferred_paid", pref); err != nil {
		return err
	}
	if p.PrincipalPaid, err = parseDecimal("principal_paid", principal); err != nil {
		return err
	}
	if p.ProfitPaid, err = parseDecimal("profit_paid", profit); err != nil {
		return err
	}
	return nil
}
