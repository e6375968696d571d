package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docjournal/internal/core/apperror"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
)

const sessionsTable = "reservation_sessions"

// sessionInsertCols are the columns written on Create.
var sessionInsertCols = postgres.ExtractDBColumns[ledger.Session]()

var sessionCols = []string{
	"id", "user_id", "equipment_id", "requested_count", "status::text AS status",
	"ttl_seconds", "created_at", "expires_at",
}

// SessionRepo implements ledger.SessionRepository.
type SessionRepo struct {
	txm *postgres.TxManager
}

// NewSessionRepo creates a session repository.
func NewSessionRepo(txm *postgres.TxManager) *SessionRepo {
	return &SessionRepo{txm: txm}
}

var _ ledger.SessionRepository = (*SessionRepo)(nil)

func (r *SessionRepo) Create(ctx context.Context, s *ledger.Session) error {
	data := postgres.StructToMap(s)

	filtered := make(map[string]any, len(sessionInsertCols))
	for _, col := range sessionInsertCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	filtered["status"] = string(s.Status)

	q := postgres.Builder().
		Insert(sessionsTable).
		SetMap(filtered)

	_, err := r.exec(ctx, q)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*ledger.Session, error) {
	return r.get(ctx, id, false)
}

func (r *SessionRepo) GetForUpdate(ctx context.Context, id string) (*ledger.Session, error) {
	return r.get(ctx, id, true)
}

func (r *SessionRepo) SetStatus(ctx context.Context, id string, status ledger.SessionStatus) error {
	q := postgres.Builder().
		Update(sessionsTable).
		Set("status", string(status)).
		Where(squirrel.Eq{"id": id})

	n, err := r.exec(ctx, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("session", id)
	}
	return nil
}

func (r *SessionRepo) Extend(ctx context.Context, id string, expiresAt time.Time, requestedCount int) error {
	q := postgres.Builder().
		Update(sessionsTable).
		Set("expires_at", expiresAt).
		Set("requested_count", requestedCount).
		Where(squirrel.Eq{"id": id})

	n, err := r.exec(ctx, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("session", id)
	}
	return nil
}

func (r *SessionRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	q := postgres.Builder().
		Update(sessionsTable).
		Set("status", string(ledger.SessionExpired)).
		Where(squirrel.Eq{"status": string(ledger.SessionActive)}).
		Where(squirrel.Lt{"expires_at": now})

	return r.exec(ctx, q)
}

func (r *SessionRepo) get(ctx context.Context, id string, lock bool) (*ledger.Session, error) {
	q := postgres.Builder().
		Select(sessionCols...).
		From(sessionsTable).
		Where(squirrel.Eq{"id": id})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var s ledger.Session
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		return nil, postgres.NotFound(err, "session", id)
	}
	return &s, nil
}

func (r *SessionRepo) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("%s: %w", sessionsTable, err))
	}
	return tag.RowsAffected(), nil
}
