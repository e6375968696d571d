// Package ledger_repo provides PostgreSQL implementations of the number ledger
// repositories: the counter row, number entries and reservation sessions.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
)

const (
	counterTable = "doc_counter"
	counterRowID = 1
)

var counterCols = []string{"base_start", "next_normal_start", "updated_at"}

// CounterRepo implements ledger.CounterRepository.
type CounterRepo struct {
	txm *postgres.TxManager
}

// NewCounterRepo creates a counter repository.
func NewCounterRepo(txm *postgres.TxManager) *CounterRepo {
	return &CounterRepo{txm: txm}
}

var _ ledger.CounterRepository = (*CounterRepo)(nil)

// GetForUpdate locks the counter row, creating it at 1/1 when missing.
func (r *CounterRepo) GetForUpdate(ctx context.Context) (*ledger.Counter, error) {
	c, err := r.selectCounter(ctx, true)
	if err == nil || !pgxscan.NotFound(err) {
		return c, postgres.MapError(err)
	}

	if err := r.bootstrap(ctx); err != nil {
		return nil, err
	}
	c, err = r.selectCounter(ctx, true)
	return c, postgres.MapError(err)
}

// Get reads the counter without locking.
func (r *CounterRepo) Get(ctx context.Context) (*ledger.Counter, error) {
	c, err := r.selectCounter(ctx, false)
	if pgxscan.NotFound(err) {
		return &ledger.Counter{BaseStart: 1, NextNormalStart: 1}, nil
	}
	return c, postgres.MapError(err)
}

// AdvanceNormal moves next_normal_start forward to next.
func (r *CounterRepo) AdvanceNormal(ctx context.Context, next int64) error {
	return r.exec(ctx, advanceQuery(next))
}

// RaiseBase moves both base_start and next_normal_start forward to base.
func (r *CounterRepo) RaiseBase(ctx context.Context, base int64) error {
	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	q := postgres.Builder().
		Update(counterTable).
		Set("base_start", squirrel.Expr("GREATEST(base_start, ?)", base)).
		Set("next_normal_start", squirrel.Expr("GREATEST(next_normal_start, ?)", base)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": counterRowID})

	return r.exec(ctx, q)
}

func advanceQuery(next int64) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(counterTable).
		Set("next_normal_start", squirrel.Expr("GREATEST(next_normal_start, ?)", next)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": counterRowID})
}

func (r *CounterRepo) selectCounter(ctx context.Context, lock bool) (*ledger.Counter, error) {
	q := postgres.Builder().
		Select(counterCols...).
		From(counterTable).
		Where(squirrel.Eq{"id": counterRowID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var c ledger.Counter
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &c, sql, args...); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CounterRepo) bootstrap(ctx context.Context) error {
	q := postgres.Builder().
		Insert(counterTable).
		Columns("id", "base_start", "next_normal_start").
		Values(counterRowID, 1, 1).
		Suffix("ON CONFLICT (id) DO NOTHING")

	return r.exec(ctx, q)
}

func (r *CounterRepo) exec(ctx context.Context, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build counter statement: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("%s: %w", counterTable, err))
	}
	return nil
}
