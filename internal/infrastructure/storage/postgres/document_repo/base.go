// Package document_repo provides PostgreSQL implementations for filed documents
// and the equipment they are filed against.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docjournal/internal/infrastructure/storage/postgres"
)

// baseRepo provides insert-returning and lookup by id for append-only tables.
// Embed this in specific repositories.
type baseRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	// generated columns filled by the database on insert
	generated []string
}

func newBaseRepo[T any](txm *postgres.TxManager, tableName, entityName string, generated ...string) baseRepo[T] {
	return baseRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		generated:  generated,
	}
}

// insertQuery builds an INSERT from the entity's "db" tags, leaving generated
// columns to the database and returning them.
func (r *baseRepo[T]) insertQuery(entity *T) squirrel.InsertBuilder {
	data := postgres.StructToMap(entity)

	skip := make(map[string]bool, len(r.generated))
	for _, col := range r.generated {
		skip[col] = true
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if skip[col] {
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := postgres.Builder().
		Insert(r.tableName).
		SetMap(filtered)
	if len(r.generated) > 0 {
		q = q.Suffix("RETURNING " + strings.Join(r.generated, ", "))
	}
	return q
}

// insert runs insertQuery and scans the returned columns into dest.
func (r *baseRepo[T]) insert(ctx context.Context, entity *T, dest ...any) error {
	sql, args, err := r.insertQuery(entity).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(dest...); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.tableName, err))
	}
	return nil
}

// getByID loads one row. NotFound when absent.
func (r *baseRepo[T]) getByID(ctx context.Context, id int64) (*T, error) {
	q := postgres.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{"id": id})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var entity T
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &entity, sql, args...); err != nil {
		return nil, postgres.NotFound(err, r.entityName, id)
	}
	return &entity, nil
}
