// Package distribution applies capital-return events and preferred-return accrual to stored
// investor state. It is the single writer of the ledger: every mutation of a project runs
// under that project's lock and inside one ledger transaction.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"deal_proforma/pkg/core/logger"
	"deal_proforma/pkg/core/metrics"
	"deal_proforma/pkg/core/store"
	"deal_proforma/pkg/core/timeline"
	"deal_proforma/pkg/core/waterfall"
	"deal_proforma/pkg/models"
)

// Service owns event processing and accrual for every project in a ledger.
type Service struct {
	ledger store.Ledger
	policy waterfall.Policy
	rule   waterfall.AccrualRule
	log    *zap.Logger

	// Now is the clock used to seed accrual; tests replace it.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a service over a ledger.
func NewService(ledger store.Ledger, policy waterfall.Policy, rule waterfall.AccrualRule, log *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		policy: policy,
		rule:   rule,
		log:    logger.OrNop(log),
		Now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Policy is the policy events are distributed under.
func (s *Service) Policy() waterfall.Policy {
	return s.policy
}

func (s *Service) lock(projectID string) func() {
	s.mu.Lock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Register stores a project's investor set.
//
// On first registration an investor without balances starts with its full contribution
// outstanding, and accrual starts at the current month. Re-registering replaces names, roles,
// contributions and holdings inside one ledger transaction, but running balances only move
// through events and accrual: a known investor keeps its stored balances, a new one is seeded
// like a first registration, and an investor that still has balances cannot be dropped.
func (s *Service) Register(ctx context.Context, projectID string, investors []waterfall.Investor) (waterfall.State, error) {
	unlock := s.lock(projectID)
	defer unlock()

	var registered waterfall.State
	_, err := s.ledger.Update(ctx, projectID, func(stored waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		next, err := mergeInvestors(stored, investors)
		if err != nil {
			return nil, stored, err
		}
		if err := next.Validate(); err != nil {
			return nil, stored, err
		}
		registered = next
		return nil, next, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, store.ErrProjectNotFound):
		registered = waterfall.State{ProjectID: projectID, Investors: make([]waterfall.Investor, 0, len(investors))}
		for _, inv := range investors {
			registered.Investors = append(registered.Investors, seedBalances(inv))
		}
		registered.AccruedThrough = timeline.FirstOfMonth(s.Now())
		if err := registered.Validate(); err != nil {
			return waterfall.State{}, err
		}
		if err := s.ledger.SaveState(ctx, registered); err != nil {
			return waterfall.State{}, fmt.Errorf("save project %s: %w", projectID, err)
		}
	default:
		return waterfall.State{}, err
	}

	s.log.Info("Investors registered",
		zap.String("project_id", projectID),
		zap.Int("investors", len(registered.Investors)),
	)
	return registered, nil
}

// seedBalances gives an investor registered without balances its full contribution outstanding.
func seedBalances(inv waterfall.Investor) waterfall.Investor {
	if inv.OutstandingCapital.IsZero() && inv.AccruedPreferred.IsZero() {
		inv.OutstandingCapital = inv.CapitalContributed
	}
	return inv
}

// mergeInvestors applies a re-registration to stored state, carrying stored balances over.
func mergeInvestors(stored waterfall.State, investors []waterfall.Investor) (waterfall.State, error) {
	next := stored.Clone()
	next.Investors = make([]waterfall.Investor, 0, len(investors))

	kept := make(map[string]bool, len(investors))
	for _, inv := range investors {
		prev, ok := stored.Investor(inv.ID)
		if ok {
			inv.OutstandingCapital = prev.OutstandingCapital
			inv.AccruedPreferred = prev.AccruedPreferred
		} else {
			inv = seedBalances(inv)
		}
		kept[inv.ID] = true
		next.Investors = append(next.Investors, inv)
	}

	for _, prev := range stored.Investors {
		if kept[prev.ID] {
			continue
		}
		if !prev.OutstandingCapital.IsZero() || !prev.AccruedPreferred.IsZero() {
			return stored, &waterfall.InvalidStateError{
				InvestorID: prev.ID,
				Field:      "id",
				Reason:     fmt.Sprintf("cannot remove an investor with outstanding capital %s and accrued preferred %s", prev.OutstandingCapital, prev.AccruedPreferred),
			}
		}
	}
	return next, nil
}

// Process distributes one event and records the result.
func (s *Service) Process(ctx context.Context, ev waterfall.Event) (*waterfall.Distribution, error) {
	unlock := s.lock(ev.ProjectID)
	defer unlock()

	dist, err := s.ledger.Update(ctx, ev.ProjectID, func(state waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		d, next, err := waterfall.Apply(state, ev, s.policy)
		if err != nil {
			return nil, state, err
		}
		d.ID = uuid.NewString()
		return d, next, nil
	})
	if err != nil {
		metrics.RecordRejected(RejectReason(err))
		s.log.Warn("Event rejected",
			zap.String("project_id", ev.ProjectID),
			zap.String("event_id", ev.ID),
			zap.String("source", string(ev.Source)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RecordDistribution(string(dist.Source), dist.Strategy, dist.Amount.InexactFloat64())
	s.log.Info("Event distributed",
		zap.String("project_id", ev.ProjectID),
		zap.String("event_id", ev.ID),
		zap.String("source", string(ev.Source)),
		zap.String("strategy", dist.Strategy),
		zap.String("amount", dist.Amount.String()),
	)
	return dist, nil
}

// Preview runs an event against the stored state without recording anything.
func (s *Service) Preview(ctx context.Context, ev waterfall.Event) (*waterfall.Distribution, waterfall.State, error) {
	state, err := s.ledger.LoadState(ctx, ev.ProjectID)
	if err != nil {
		return nil, waterfall.State{}, err
	}
	return waterfall.Apply(state, ev, s.policy)
}

// State returns a project's stored investor state.
func (s *Service) State(ctx context.Context, projectID string) (waterfall.State, error) {
	return s.ledger.LoadState(ctx, projectID)
}

// Distributions lists a project's recorded distributions.
func (s *Service) Distributions(ctx context.Context, projectID string) ([]*waterfall.Distribution, error) {
	if _, err := s.ledger.LoadState(ctx, projectID); err != nil {
		return nil, err
	}
	return s.ledger.ListDistributions(ctx, projectID)
}

// AccrueDue credits every project with the preferred return of all whole periods between
// its AccruedThrough mark and asOf. A failing project is logged and skipped; the errors are
// returned together.
func (s *Service) AccrueDue(ctx context.Context, asOf time.Time) (int, error) {
	projects, err := s.ledger.ListProjects(ctx)
	if err != nil {
		return 0, err
	}

	accrued := 0
	var errs []error
	for _, id := range projects {
		n, err := s.accrueProject(ctx, id, asOf)
		metrics.RecordAccrual(err)
		if err != nil {
			s.log.Error("Accrual failed", zap.String("project_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("project %s: %w", id, err))
			continue
		}
		if n > 0 {
			accrued++
			s.log.Info("Preferred return accrued",
				zap.String("project_id", id),
				zap.Int("periods", n),
				zap.String("period", string(s.rule.Period)),
			)
		}
	}
	return accrued, errors.Join(errs...)
}

func (s *Service) accrueProject(ctx context.Context, projectID string, asOf time.Time) (int, error) {
	unlock := s.lock(projectID)
	defer unlock()

	periods := 0
	_, err := s.ledger.Update(ctx, projectID, func(state waterfall.State) (*waterfall.Distribution, waterfall.State, error) {
		if state.AccruedThrough.IsZero() {
			state.AccruedThrough = timeline.FirstOfMonth(asOf)
			return nil, state, nil
		}
		n, boundary := waterfall.PeriodsBetween(state.AccruedThrough, asOf, s.rule.Period)
		if n == 0 {
			return nil, state, nil
		}
		next, err := waterfall.Accrue(state, s.rule, n, boundary)
		if err != nil {
			return nil, state, err
		}
		periods = n
		return nil, next, nil
	})
	return periods, err
}

// RejectReason classifies a processing error for metrics and HTTP status mapping.
func RejectReason(err error) string {
	var evErr *waterfall.InvalidEventError
	var stErr *waterfall.InvalidStateError
	switch {
	case errors.As(err, &evErr):
		return "invalid_event"
	case errors.As(err, &stErr):
		return "invalid_state"
	case errors.Is(err, waterfall.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, store.ErrDuplicateEvent):
		return "duplicate"
	case errors.Is(err, store.ErrProjectNotFound):
		return "not_found"
	}
	return "internal"
}

// InvestorsFromRecords converts stored investor records into waterfall investors.
func InvestorsFromRecords(records []models.InvestorRecord) []waterfall.Investor {
	out := make([]waterfall.Investor, 0, len(records))
	for _, r := range records {
		out = append(out, waterfall.Investor{
			ID:                 r.ID,
			Name:               r.Name,
			Role:               waterfall.Role(r.Role),
			CapitalContributed: r.CapitalContributed,
			HoldingPct:         r.HoldingPct,
			OutstandingCapital: r.OutstandingCapital,
			AccruedPreferred:   r.AccruedPreferred,
		})
	}
	return out
}

// DeriveInvestors converts records and replaces their holding percentages with the LP
// formula's snapshot.
func DeriveInvestors(records []models.InvestorRecord, totalProjectCost float64, lpSharePct float64) ([]waterfall.Investor, error) {
	return waterfall.DeriveHoldings(
		decimal.NewFromFloat(totalProjectCost),
		decimal.NewFromFloat(lpSharePct),
		InvestorsFromRecords(records),
	)
}
