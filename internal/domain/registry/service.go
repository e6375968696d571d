// Package registry files documents against reserved numbers and keeps the
// equipment list they are filed against.
package registry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docjournal/internal/core/apperror"
	"docjournal/internal/core/id"
	"docjournal/internal/core/numerator"
	"docjournal/internal/core/tx"
	"docjournal/internal/domain/ledger"
	"docjournal/pkg/logger"
)

var tracer = otel.Tracer("docjournal/registry")

// AssignRequest binds one reserved number to a new document.
// Numeric 0 picks the lowest number the caller may use.
type AssignRequest struct {
	SessionID string
	Numeric   int64
	Fields    ledger.DocumentFields
}

// AssignResult is the filed document and what happened to its session.
type AssignResult struct {
	Document         *ledger.Document
	SessionCompleted bool
	Released         int64
}

// Service provides the assignment step.
type Service struct {
	txManager tx.Manager
	numbers   ledger.NumberRepository
	sessions  ledger.SessionRepository
	documents ledger.DocumentRepository
	equipment ledger.EquipmentRepository
	observer  ledger.Observer
	now       func() time.Time
}

// NewService creates the registry service. A nil observer discards events.
func NewService(txManager tx.Manager, repos ledger.Repositories, observer ledger.Observer) *Service {
	if observer == nil {
		observer = ledger.NopObserver{}
	}
	return &Service{
		txManager: txManager,
		numbers:   repos.Numbers,
		sessions:  repos.Sessions,
		documents: repos.Documents,
		equipment: repos.Equipment,
		observer:  observer,
		now:       time.Now,
	}
}

// SetClock replaces time.Now. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Assign files a document under a number reserved in the session and marks
// the number assigned. When the caller has no usable reserved numbers left
// the session is completed and any leftovers released. A duplicate filing
// rolls everything back, so the number stays reserved.
func (s *Service) Assign(ctx context.Context, actor ledger.Actor, req AssignRequest) (*AssignResult, error) {
	ctx, span := tracer.Start(ctx, "registry.Assign",
		trace.WithAttributes(
			attribute.String("session_id", req.SessionID),
			attribute.Int64("numeric", req.Numeric),
		))
	defer span.End()

	fields := req.Fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if req.Numeric < 0 {
		return nil, apperror.NewValidation("numeric must be positive").WithDetail("field", "numeric")
	}
	if !id.ValidSessionID(req.SessionID) {
		return nil, apperror.NewNotFound("session", req.SessionID)
	}

	var res *AssignResult
	var golden bool
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()

		sess, err := s.sessions.GetForUpdate(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(sess) {
			return apperror.NewForbidden("session belongs to another user")
		}
		if !sess.IsActive(now) {
			return apperror.NewSessionNotActive(sess.ID, string(sess.EffectiveStatus(now)))
		}

		numeric := req.Numeric
		if numeric == 0 {
			if numeric, err = s.pickLowest(ctx, actor, sess.ID, now); err != nil {
				return err
			}
		} else {
			entry, err := s.numbers.GetForUpdate(ctx, numeric)
			if err != nil && !apperror.IsNotFound(err) {
				return fmt.Errorf("lock number: %w", err)
			}
			if entry == nil || !entry.HeldBy(sess.ID, now) {
				return apperror.NewNumberNotReserved(numeric, sess.ID)
			}
			if !actor.MayHold(numeric) {
				return apperror.NewForbidden("only administrators may assign golden numbers").
					WithDetail("numeric", numeric)
			}
		}
		golden = numerator.IsGolden(numeric)

		doc := &ledger.Document{
			Numeric:     numeric,
			RegDate:     fields.RegDate,
			DocName:     fields.DocName,
			EquipmentID: sess.EquipmentID,
			UserID:      actor.UserID,
		}
		if doc.RegDate.IsZero() {
			doc.RegDate = now
		}
		if fields.Note != "" {
			note := fields.Note
			doc.Note = &note
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			return err
		}
		if err := s.numbers.MarkAssigned(ctx, numeric, now); err != nil {
			return fmt.Errorf("mark assigned: %w", err)
		}

		res = &AssignResult{Document: doc}

		remaining, err := s.numbers.ListReserved(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("list reserved: %w", err)
		}
		for _, e := range remaining {
			if actor.MayHold(e.Numeric) {
				return nil
			}
		}

		released, err := s.numbers.ReleaseSession(ctx, sess.ID, now)
		if err != nil {
			return fmt.Errorf("release leftovers: %w", err)
		}
		if err := s.sessions.SetStatus(ctx, sess.ID, ledger.SessionCompleted); err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		res.SessionCompleted = true
		res.Released = released
		return nil
	})
	if err != nil {
		if apperror.IsConflict(err) {
			if appErr, ok := apperror.AsAppError(err); ok {
				s.observer.AllocationRejected(appErr.Code)
			}
		}
		return nil, err
	}

	s.observer.NumberAssigned(golden)
	if res.Released > 0 {
		s.observer.NumbersReleased(ledger.ReasonCompleted, res.Released)
	}
	logger.Info(ctx, "document assigned",
		"document_id", res.Document.ID,
		"numeric", res.Document.Numeric,
		"session_id", req.SessionID,
		"session_completed", res.SessionCompleted)
	return res, nil
}

// pickLowest returns the lowest number reserved under the session that the actor may use.
func (s *Service) pickLowest(ctx context.Context, actor ledger.Actor, sessionID string, now time.Time) (int64, error) {
	entries, err := s.numbers.ListReserved(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list reserved: %w", err)
	}
	for _, e := range entries {
		if e.HeldBy(sessionID, now) && actor.MayHold(e.Numeric) {
			return e.Numeric, nil
		}
	}
	return 0, apperror.NewNumberNotReserved(0, sessionID)
}

// GetDocument returns one filed document.
func (s *Service) GetDocument(ctx context.Context, docID int64) (*ledger.Document, error) {
	return s.documents.GetByID(ctx, docID)
}

// CreateEquipment validates and stores a piece of equipment.
func (s *Service) CreateEquipment(ctx context.Context, e *ledger.Equipment) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := s.equipment.Create(ctx, e); err != nil {
		return err
	}
	logger.Info(ctx, "equipment created", "id", e.ID, "eq_type", e.EqType)
	return nil
}

// GetEquipment returns one piece of equipment.
func (s *Service) GetEquipment(ctx context.Context, equipmentID int64) (*ledger.Equipment, error) {
	return s.equipment.GetByID(ctx, equipmentID)
}
