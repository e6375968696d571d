package reservation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"docjournal/internal/core/apperror"
	appctx "docjournal/internal/core/context"
	"docjournal/internal/core/tx"
	"docjournal/internal/domain/ledger"
	"docjournal/pkg/logger"
)

// DefaultSweepInterval is how often the sweeper runs when not configured.
const DefaultSweepInterval = time.Minute

// SweepResult reports one sweeper cycle.
type SweepResult struct {
	SessionsExpired int64
	NumbersReleased int64
	Skipped         bool
}

// Sweeper expires overdue sessions and releases overdue reservations.
type Sweeper struct {
	txManager tx.Manager
	sessions  ledger.SessionRepository
	numbers   ledger.NumberRepository
	interval  time.Duration
	observer  ledger.Observer
	now       func() time.Time
	log       *logger.Logger
}

// NewSweeper creates a sweeper. A nil observer discards events.
func NewSweeper(txManager tx.Manager, repos ledger.Repositories, interval time.Duration, observer ledger.Observer) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if observer == nil {
		observer = ledger.NopObserver{}
	}
	return &Sweeper{
		txManager: txManager,
		sessions:  repos.Sessions,
		numbers:   repos.Numbers,
		interval:  interval,
		observer:  observer,
		now:       time.Now,
		log:       logger.Default().WithComponent("sweeper"),
	}
}

// SetClock replaces time.Now. Tests only.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// SetLogger replaces the component logger.
func (s *Sweeper) SetLogger(l *logger.Logger) {
	s.log = l.WithComponent("sweeper")
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Infow("sweeper started", "interval", s.interval)
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one cycle under its own trace ids so its log lines can be correlated.
func (s *Sweeper) tick(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	log := s.log.WithContext(ctx)

	res, err := s.SweepOnce(ctx)
	if err != nil {
		log.Errorw("sweep failed", "error", err)
		return
	}
	if res.SessionsExpired > 0 || res.NumbersReleased > 0 {
		log.Infow("sweep finished",
			"sessions_expired", res.SessionsExpired,
			"numbers_released", res.NumbersReleased)
	}
}

// SweepOnce runs one cycle: expire sessions, then release numbers, each in its
// own transaction. Both steps always run and their errors are combined.
// A missing schema skips the cycle without error.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	now := s.now()
	var res SweepResult

	expireErr := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.sessions.ExpireOverdue(ctx, now)
		if err != nil {
			return fmt.Errorf("expire sessions: %w", err)
		}
		res.SessionsExpired = n
		return nil
	})

	releaseErr := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.numbers.ReleaseExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("release numbers: %w", err)
		}
		res.NumbersReleased = n
		return nil
	})

	schemaMissing := apperror.IsSchemaNotReady(expireErr) || apperror.IsSchemaNotReady(releaseErr)
	if schemaMissing && skippable(expireErr) && skippable(releaseErr) {
		s.log.Debugw("sweep skipped (tables may not exist)")
		return SweepResult{Skipped: true}, nil
	}

	err := multierr.Append(expireErr, releaseErr)
	s.observer.SessionsExpired(res.SessionsExpired)
	s.observer.NumbersReleased(ledger.ReasonExpired, res.NumbersReleased)
	s.observer.SweepFinished(time.Since(started), err)
	return res, err
}

// skippable reports step outcomes that do not prevent skipping the cycle.
func skippable(err error) bool {
	return err == nil || apperror.IsSchemaNotReady(err)
}
