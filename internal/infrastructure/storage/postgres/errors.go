package postgres

import (
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"docjournal/internal/core/apperror"
)

// SQLSTATE codes the journal reacts to.
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
	codeUndefinedObject = "42704"
)

// uniqueFields maps unique constraint names to the field reported to callers.
var uniqueFields = map[string][2]string{
	"documents_filing_key":      {"document", "doc_name"},
	"documents_numeric_key":     {"document", "numeric"},
	"equipment_factory_no_key":  {"equipment", "factory_no"},
	"reservation_sessions_pkey": {"session", "id"},
	"doc_numbers_pkey":          {"number", "numeric"},
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// MapError translates PostgreSQL errors into AppErrors where callers can act
// on them: unique violations become Duplicate, a missing relation becomes
// SchemaNotReady. Anything else is returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		entity, field := "record", pgErr.ConstraintName
		if f, ok := uniqueFields[pgErr.ConstraintName]; ok {
			entity, field = f[0], f[1]
		}
		return apperror.NewDuplicate(entity, field, detailValue(pgErr.Detail)).WithCause(err)
	case codeUndefinedTable, codeUndefinedObject:
		return apperror.NewSchemaNotReady(err)
	}
	return err
}

// NotFound maps a missing row to an AppError NotFound and everything else through MapError.
func NotFound(err error, entity string, id any) error {
	if pgxscan.NotFound(err) {
		return apperror.NewNotFound(entity, id)
	}
	return MapError(err)
}

// detailValue extracts the offending value from a unique violation detail:
// `Key (factory_no)=(F-1) already exists.` gives "F-1".
func detailValue(detail string) string {
	start := strings.Index(detail, ")=(")
	if start < 0 {
		return ""
	}
	rest := detail[start+3:]
	end := strings.LastIndex(rest, ")")
	if end < 0 {
		return rest
	}
	return rest[:end]
}
