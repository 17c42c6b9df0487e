// Package scheduler runs periodic preferred-return accrual.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deal_proforma/pkg/core/logger"
)

// Accruer is the part of the distribution service the scheduler drives.
type Accruer interface {
	AccrueDue(ctx context.Context, asOf time.Time) (int, error)
}

// AccrualScheduler calls AccrueDue on a cron schedule.
type AccrualScheduler struct {
	Cron    *cron.Cron
	Accruer Accruer
	Ctx     context.Context
	Now     func() time.Time
	log     *zap.Logger
}

// NewAccrualScheduler creates a scheduler with standard five-field cron specs in UTC.
func NewAccrualScheduler(ctx context.Context, accruer Accruer, log *zap.Logger) *AccrualScheduler {
	return &AccrualScheduler{
		Cron:    cron.New(cron.WithLocation(time.UTC)),
		Accruer: accruer,
		Ctx:     ctx,
		Now:     time.Now,
		log:     logger.OrNop(log),
	}
}

// Register adds the accrual task.
func (s *AccrualScheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register accrual task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *AccrualScheduler) Start() {
	s.Cron.Start()
	s.log.Info("Accrual scheduler started")
}

// Stop stops the scheduler and waits for a running task to finish.
func (s *AccrualScheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("Accrual scheduler stopped")
}

// RunNow accrues every project up to the current time.
func (s *AccrualScheduler) RunNow() {
	asOf := s.Now().UTC()
	n, err := s.Accruer.AccrueDue(s.Ctx, asOf)
	if err != nil {
		s.log.Error("Accrual run finished with errors", zap.Int("projects", n), zap.Error(err))
		return
	}
	s.log.Info("Accrual run finished", zap.Int("projects", n), zap.Time("as_of", asOf))
}
