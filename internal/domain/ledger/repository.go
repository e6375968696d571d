package ledger

import (
	"context"
	"time"
)

// CounterRepository accesses the singleton counter row.
type CounterRepository interface {
	// GetForUpdate locks the counter for the rest of the transaction.
	// The row is created at 1/1 when missing.
	GetForUpdate(ctx context.Context) (*Counter, error)

	// Get reads the counter without locking.
	Get(ctx context.Context) (*Counter, error)

	// AdvanceNormal moves next_normal_start up to next. Never lowers it.
	AdvanceNormal(ctx context.Context, next int64) error

	// RaiseBase moves base_start and next_normal_start up to base. Never lowers them.
	RaiseBase(ctx context.Context, base int64) error
}

// NumberRepository accesses the number ledger.
type NumberRepository interface {
	// FetchReleasedForUpdate locks up to limit released numerics >= minNumeric,
	// lowest first, skipping rows locked by concurrent transactions.
	// goldenOnly restricts the scan to golden numerics.
	FetchReleasedForUpdate(ctx context.Context, minNumeric int64, goldenOnly bool, limit int) ([]int64, error)

	// ReserveExisting flips released numerics to reserved under hold.
	ReserveExisting(ctx context.Context, numerics []int64, hold Hold) error

	// InsertReserved creates a reserved entry for a brand-new numeric.
	// Returns false when the numeric already exists.
	InsertReserved(ctx context.Context, numeric int64, hold Hold) (bool, error)

	// GetForUpdate locks and returns one entry. NotFound when absent.
	GetForUpdate(ctx context.Context, numeric int64) (*NumberEntry, error)

	// ListReserved returns the entries reserved under the session, lowest first.
	ListReserved(ctx context.Context, sessionID string) ([]NumberEntry, error)

	// ExtendSession moves expires_at of every entry reserved under the session.
	ExtendSession(ctx context.Context, sessionID string, expiresAt time.Time) (int64, error)

	// MarkAssigned flips a reserved entry to assigned and clears its expiry.
	MarkAssigned(ctx context.Context, numeric int64, at time.Time) error

	// ReleaseSession releases every entry still reserved under the session.
	ReleaseSession(ctx context.Context, sessionID string, at time.Time) (int64, error)

	// ReleaseExpired releases every reserved entry whose expiry is before now.
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)

	// FilterOccupied returns the subset of numerics currently reserved or assigned.
	FilterOccupied(ctx context.Context, numerics []int64) ([]int64, error)

	// UpsertAssigned records numerics consumed outside the engine as assigned.
	UpsertAssigned(ctx context.Context, numerics []int64, at time.Time) (int64, error)
}

// SessionRepository accesses reservation sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error

	// Get returns the session. NotFound when absent.
	Get(ctx context.Context, id string) (*Session, error)

	// GetForUpdate locks and returns the session. NotFound when absent.
	GetForUpdate(ctx context.Context, id string) (*Session, error)

	SetStatus(ctx context.Context, id string, status SessionStatus) error

	// Extend slides expires_at and records the new requested count.
	Extend(ctx context.Context, id string, expiresAt time.Time, requestedCount int) error

	// ExpireOverdue flips active sessions with expires_at before now to expired.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// DocumentRepository accesses filed documents.
type DocumentRepository interface {
	// Create inserts the document and fills its ID.
	// Duplicate filings and reused numerics are reported as Duplicate errors.
	Create(ctx context.Context, d *Document) error

	GetByID(ctx context.Context, id int64) (*Document, error)
}

// EquipmentRepository accesses equipment records.
type EquipmentRepository interface {
	// Create inserts the equipment and fills ID and CreatedAt.
	// A repeated factory number is a Duplicate error.
	Create(ctx context.Context, e *Equipment) error

	GetByID(ctx context.Context, id int64) (*Equipment, error)
}

// Repositories bundles the storage the domain services need.
type Repositories struct {
	Counter   CounterRepository
	Numbers   NumberRepository
	Sessions  SessionRepository
	Documents DocumentRepository
	Equipment EquipmentRepository
}
