package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Tables the journal needs before it can serve requests.
var requiredTables = []string{"doc_counter", "doc_numbers", "reservation_sessions", "documents", "equipment"}

// EnsureSchema applies the idempotent schema.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	// No arguments: pgx sends this over the simple protocol, which allows
	// several statements in one call.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SchemaReady reports whether every required table exists.
func SchemaReady(ctx context.Context, q Querier) (bool, error) {
	var missing int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM unnest($1::text[]) AS t(name) WHERE to_regclass(t.name) IS NULL`,
		requiredTables,
	).Scan(&missing)
	if err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	return missing == 0, nil
}

// SchemaReady reports whether the pool's database carries the journal schema.
func (p *Pool) SchemaReady(ctx context.Context) (bool, error) {
	return SchemaReady(ctx, p.Pool)
}
