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

const numbersTable = "doc_numbers"

// Enum columns are read back as text so they scan into plain string types.
var numberCols = []string{
	"numeric", "is_golden", "status::text AS status", "reserved_by", "session_id",
	"reserved_at", "assigned_at", "released_at", "expires_at",
}

// upsertAssignedSQL promotes the staged numerics to assigned, detaching any
// session that still held them. is_golden is a generated column and is never written.
const upsertAssignedSQL = `
INSERT INTO doc_numbers (numeric, status, assigned_at)
SELECT DISTINCT numeric, 'assigned'::docnum_status, $1::timestamptz
FROM import_numbers
WHERE numeric > 0
ON CONFLICT (numeric) DO UPDATE
SET status      = 'assigned',
    assigned_at = EXCLUDED.assigned_at,
    reserved_by = NULL,
    session_id  = NULL,
    expires_at  = NULL,
    released_at = NULL`

// NumberRepo implements ledger.NumberRepository.
type NumberRepo struct {
	txm   *postgres.TxManager
	batch *postgres.BatchInserter
}

// NewNumberRepo creates a number ledger repository.
func NewNumberRepo(txm *postgres.TxManager) *NumberRepo {
	return &NumberRepo{txm: txm, batch: postgres.NewBatchInserter(txm)}
}

var _ ledger.NumberRepository = (*NumberRepo)(nil)

func (r *NumberRepo) FetchReleasedForUpdate(ctx context.Context, minNumeric int64, goldenOnly bool, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}

	return r.selectNumerics(ctx, fetchReleasedQuery(minNumeric, goldenOnly, limit))
}

func (r *NumberRepo) ReserveExisting(ctx context.Context, numerics []int64, hold ledger.Hold) error {
	if len(numerics) == 0 {
		return nil
	}

	q := postgres.Builder().
		Update(numbersTable).
		Set("status", string(ledger.StatusReserved)).
		Set("reserved_by", hold.UserID).
		Set("session_id", hold.SessionID).
		Set("reserved_at", hold.ReservedAt).
		Set("expires_at", hold.ExpiresAt).
		Set("released_at", nil).
		Where(squirrel.Eq{"numeric": numerics}).
		Where(squirrel.Eq{"status": string(ledger.StatusReleased)})

	n, err := r.exec(ctx, q)
	if err != nil {
		return err
	}
	if n != int64(len(numerics)) {
		return apperror.NewConflict("released numbers changed state during reservation").
			WithDetail("requested", len(numerics)).
			WithDetail("reserved", n)
	}
	return nil
}

func (r *NumberRepo) InsertReserved(ctx context.Context, numeric int64, hold ledger.Hold) (bool, error) {
	q := postgres.Builder().
		Insert(numbersTable).
		Columns("numeric", "status", "reserved_by", "session_id", "reserved_at", "expires_at").
		Values(numeric, string(ledger.StatusReserved), hold.UserID, hold.SessionID, hold.ReservedAt, hold.ExpiresAt).
		Suffix("ON CONFLICT (numeric) DO NOTHING")

	n, err := r.exec(ctx, q)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *NumberRepo) GetForUpdate(ctx context.Context, numeric int64) (*ledger.NumberEntry, error) {
	q := postgres.Builder().
		Select(numberCols...).
		From(numbersTable).
		Where(squirrel.Eq{"numeric": numeric}).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var e ledger.NumberEntry
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &e, sql, args...); err != nil {
		return nil, postgres.NotFound(err, "number", numeric)
	}
	return &e, nil
}

func (r *NumberRepo) ListReserved(ctx context.Context, sessionID string) ([]ledger.NumberEntry, error) {
	q := postgres.Builder().
		Select(numberCols...).
		From(numbersTable).
		Where(squirrel.Eq{"session_id": sessionID}).
		Where(squirrel.Eq{"status": string(ledger.StatusReserved)}).
		OrderBy("numeric")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	entries := make([]ledger.NumberEntry, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("list reserved: %w", err))
	}
	return entries, nil
}

func (r *NumberRepo) ExtendSession(ctx context.Context, sessionID string, expiresAt time.Time) (int64, error) {
	q := postgres.Builder().
		Update(numbersTable).
		Set("expires_at", expiresAt).
		Where(squirrel.Eq{"session_id": sessionID}).
		Where(squirrel.Eq{"status": string(ledger.StatusReserved)})

	return r.exec(ctx, q)
}

func (r *NumberRepo) MarkAssigned(ctx context.Context, numeric int64, at time.Time) error {
	q := postgres.Builder().
		Update(numbersTable).
		Set("status", string(ledger.StatusAssigned)).
		Set("assigned_at", at).
		Set("expires_at", nil).
		Where(squirrel.Eq{"numeric": numeric}).
		Where(squirrel.Eq{"status": string(ledger.StatusReserved)})

	n, err := r.exec(ctx, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewPrecondition(apperror.CodeNumberNotReserved, "number is not reserved").
			WithDetail("numeric", numeric)
	}
	return nil
}

func (r *NumberRepo) ReleaseSession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	q := releaseQuery(at).
		Where(squirrel.Eq{"session_id": sessionID}).
		Where(squirrel.Eq{"status": string(ledger.StatusReserved)})

	return r.exec(ctx, q)
}

func (r *NumberRepo) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	q := releaseQuery(now).
		Where(squirrel.Eq{"status": string(ledger.StatusReserved)}).
		Where(squirrel.Lt{"expires_at": now})

	return r.exec(ctx, q)
}

func (r *NumberRepo) FilterOccupied(ctx context.Context, numerics []int64) ([]int64, error) {
	if len(numerics) == 0 {
		return nil, nil
	}

	return r.selectNumerics(ctx, occupiedQuery(numerics))
}

// UpsertAssigned stages numerics in a temporary table over COPY and merges
// them into the ledger. Requires a transaction in ctx.
func (r *NumberRepo) UpsertAssigned(ctx context.Context, numerics []int64, at time.Time) (int64, error) {
	if len(numerics) == 0 {
		return 0, nil
	}

	q := r.txm.GetQuerier(ctx)
	if _, err := q.Exec(ctx, "CREATE TEMP TABLE IF NOT EXISTS import_numbers (numeric BIGINT NOT NULL) ON COMMIT DROP"); err != nil {
		return 0, postgres.MapError(fmt.Errorf("create staging table: %w", err))
	}

	rows := make([][]any, len(numerics))
	for i, n := range numerics {
		rows[i] = []any{n}
	}
	if _, err := r.batch.CopyFromSlice(ctx, "import_numbers", []string{"numeric"}, rows); err != nil {
		return 0, err
	}

	tag, err := q.Exec(ctx, upsertAssignedSQL, at)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("merge imported numbers: %w", err))
	}
	return tag.RowsAffected(), nil
}

// fetchReleasedQuery locks released numerics from minNumeric upwards.
func fetchReleasedQuery(minNumeric int64, goldenOnly bool, limit int) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select("numeric").
		From(numbersTable).
		Where(squirrel.Eq{"status": string(ledger.StatusReleased)}).
		Where(squirrel.GtOrEq{"numeric": minNumeric})
	if goldenOnly {
		q = q.Where(squirrel.Eq{"is_golden": true})
	}
	return q.
		OrderBy("numeric").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")
}

func occupiedQuery(numerics []int64) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("numeric").
		From(numbersTable).
		Where(squirrel.Eq{"numeric": numerics}).
		Where(squirrel.Eq{"status": []string{string(ledger.StatusReserved), string(ledger.StatusAssigned)}}).
		OrderBy("numeric")
}

func releaseQuery(at time.Time) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(numbersTable).
		Set("status", string(ledger.StatusReleased)).
		Set("reserved_by", nil).
		Set("session_id", nil).
		Set("expires_at", nil).
		Set("released_at", at)
}

func (r *NumberRepo) selectNumerics(ctx context.Context, q squirrel.SelectBuilder) ([]int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var out []int64
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("%s: %w", numbersTable, err))
	}
	return out, nil
}

func (r *NumberRepo) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("%s: %w", numbersTable, err))
	}
	return tag.RowsAffected(), nil
}
