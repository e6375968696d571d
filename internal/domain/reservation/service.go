// Package reservation implements the number reservation engine: sessions,
// recycle-then-mint allocation, golden numbers and the expiry sweeper.
package reservation

import (
	"context"
	"fmt"
	"slices"
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

var tracer = otel.Tracer("docjournal/reservation")

// Config holds engine limits.
type Config struct {
	// DefaultTTL applies when a request carries no TTL
	DefaultTTL time.Duration

	// MaxTTL caps caller-supplied TTLs
	MaxTTL time.Duration

	// MaxBatch is the largest count a single request may reserve
	MaxBatch int

	// MaxNumeric is the last numeric the engine will mint
	MaxNumeric int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 30 * time.Minute,
		MaxTTL:     24 * time.Hour,
		MaxBatch:   1000,
		MaxNumeric: numerator.DefaultConfig("").MaxNumeric(),
	}
}

// Reservation is the outcome of a reserving operation.
type Reservation struct {
	Session *ledger.Session
	Numbers []int64
}

// StartRequest opens a session with count normal numbers.
type StartRequest struct {
	EquipmentID int64
	Count       int
	TTL         time.Duration
}

// GoldenRequest reserves golden numbers, into SessionID when set or a new session otherwise.
type GoldenRequest struct {
	SessionID   string
	EquipmentID int64
	Quantity    int
	TTL         time.Duration
}

// SpecificRequest reserves explicit numerics into a new session.
type SpecificRequest struct {
	EquipmentID int64
	Numbers     []int64
	TTL         time.Duration
}

// AddRequest extends an active session. At most one of Count, Numbers and
// Golden may be set; with none set the call only slides the TTL window.
type AddRequest struct {
	Count   int
	Numbers []int64
	Golden  int
}

// ImportResult reports a history import.
type ImportResult struct {
	Imported int64
	Counter  *ledger.Counter
}

// Option configures a Service.
type Option func(*Service)

// WithObserver reports engine events to o.
func WithObserver(o ledger.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the reservation engine.
type Service struct {
	txManager tx.Manager
	counter   ledger.CounterRepository
	numbers   ledger.NumberRepository
	sessions  ledger.SessionRepository
	equipment ledger.EquipmentRepository
	cfg       Config
	observer  ledger.Observer
	now       func() time.Time
}

// NewService creates the reservation engine.
func NewService(txManager tx.Manager, repos ledger.Repositories, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = def.MaxTTL
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	if cfg.MaxNumeric <= 0 {
		cfg.MaxNumeric = def.MaxNumeric
	}

	s := &Service{
		txManager: txManager,
		counter:   repos.Counter,
		numbers:   repos.Numbers,
		sessions:  repos.Sessions,
		equipment: repos.Equipment,
		cfg:       cfg,
		observer:  ledger.NopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective engine limits.
func (s *Service) Config() Config {
	return s.cfg
}

// StartSession opens a session and reserves count normal numbers for it.
// Golden numbers are never handed out here, not even to administrators.
func (s *Service) StartSession(ctx context.Context, actor ledger.Actor, req StartRequest) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.StartSession",
		trace.WithAttributes(attribute.Int("count", req.Count)))
	defer span.End()

	if err := s.validateCount("count", req.Count); err != nil {
		return nil, err
	}
	ttl, err := s.ttl(req.TTL)
	if err != nil {
		return nil, err
	}

	var res *Reservation
	var stats allocStats
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sess, err := s.openSession(ctx, actor, req.EquipmentID, req.Count, ttl)
		if err != nil {
			return err
		}
		numbers, st, err := s.allocate(ctx, s.holdFor(sess), req.Count, false, false)
		if err != nil {
			return err
		}
		stats = st
		res = &Reservation{Session: sess, Numbers: numbers}
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	s.reportAlloc(stats)
	logger.Info(ctx, "session started",
		"session_id", res.Session.ID,
		"user_id", actor.UserID,
		"equipment_id", req.EquipmentID,
		"numbers", res.Numbers)
	return res, nil
}

// ReserveGolden reserves quantity golden numbers. Administrators only.
// Golden minting never moves next_normal_start.
func (s *Service) ReserveGolden(ctx context.Context, actor ledger.Actor, req GoldenRequest) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.ReserveGolden",
		trace.WithAttributes(attribute.Int("quantity", req.Quantity)))
	defer span.End()

	if !actor.IsAdmin {
		return nil, apperror.NewForbidden("only administrators may reserve golden numbers")
	}
	if err := s.validateCount("quantity", req.Quantity); err != nil {
		return nil, err
	}
	ttl, err := s.ttl(req.TTL)
	if err != nil {
		return nil, err
	}

	// Adding to an existing session is an extension: the session and its
	// numbers slide together with the new golden ones.
	if req.SessionID != "" {
		return s.AddNumbers(ctx, actor, req.SessionID, AddRequest{Golden: req.Quantity})
	}

	var res *Reservation
	var stats allocStats
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sess, err := s.openSession(ctx, actor, req.EquipmentID, req.Quantity, ttl)
		if err != nil {
			return err
		}

		numbers, st, err := s.allocate(ctx, s.holdFor(sess), req.Quantity, true, true)
		if err != nil {
			return err
		}
		stats = st
		res = &Reservation{Session: sess, Numbers: numbers}
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	s.reportAlloc(stats)
	logger.Info(ctx, "golden numbers reserved",
		"session_id", res.Session.ID,
		"user_id", actor.UserID,
		"numbers", res.Numbers)
	return res, nil
}

// ReserveSpecific reserves the given numerics into a new session. Administrators only.
// Numbers already reserved or assigned are skipped; if every number is
// skipped the call fails and no session is left behind.
func (s *Service) ReserveSpecific(ctx context.Context, actor ledger.Actor, req SpecificRequest) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.ReserveSpecific",
		trace.WithAttributes(attribute.Int("requested", len(req.Numbers))))
	defer span.End()

	if !actor.IsAdmin {
		return nil, apperror.NewForbidden("only administrators may reserve specific numbers")
	}
	numbers, err := s.normalizeNumbers(req.Numbers)
	if err != nil {
		return nil, err
	}
	ttl, err := s.ttl(req.TTL)
	if err != nil {
		return nil, err
	}

	var res *Reservation
	var stats allocStats
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sess, err := s.openSession(ctx, actor, req.EquipmentID, len(numbers), ttl)
		if err != nil {
			return err
		}
		reserved, st, err := s.reserveSpecific(ctx, s.holdFor(sess), numbers)
		if err != nil {
			return err
		}
		stats = st
		res = &Reservation{Session: sess, Numbers: reserved}
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	s.reportAlloc(stats)
	logger.Info(ctx, "specific numbers reserved",
		"session_id", res.Session.ID,
		"requested", len(numbers),
		"reserved", res.Numbers)
	return res, nil
}

// SuggestGolden lists up to limit free golden numbers at or above the golden
// frontier. It reserves nothing. Administrators only.
func (s *Service) SuggestGolden(ctx context.Context, actor ledger.Actor, limit int) ([]int64, error) {
	if !actor.IsAdmin {
		return nil, apperror.NewForbidden("only administrators may browse golden numbers")
	}
	limit = clampLimit(limit)

	counter, err := s.counter.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get counter: %w", err)
	}

	out := make([]int64, 0, limit)
	next := counter.GoldenFrontier()
	for len(out) < limit && next <= s.cfg.MaxNumeric {
		window := make([]int64, 0, limit)
		for len(window) < limit && next <= s.cfg.MaxNumeric {
			window = append(window, next)
			next += numerator.GoldenStep
		}

		occupied, err := s.numbers.FilterOccupied(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("filter occupied: %w", err)
		}
		for _, n := range window {
			if len(out) == limit {
				break
			}
			if !slices.Contains(occupied, n) {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// AddNumbers extends an active session: its expiry and that of its reserved
// numbers slide to now+ttl, then more numbers are reserved as requested.
// Returns the session and the newly reserved numbers.
func (s *Service) AddNumbers(ctx context.Context, actor ledger.Actor, sessionID string, req AddRequest) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.AddNumbers",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	modes := 0
	if req.Count != 0 {
		modes++
		if err := s.validateCount("count", req.Count); err != nil {
			return nil, err
		}
	}
	if len(req.Numbers) > 0 {
		modes++
		if !actor.IsAdmin {
			return nil, apperror.NewForbidden("only administrators may reserve specific numbers")
		}
	}
	if req.Golden != 0 {
		modes++
		if !actor.IsAdmin {
			return nil, apperror.NewForbidden("only administrators may reserve golden numbers")
		}
		if err := s.validateCount("golden", req.Golden); err != nil {
			return nil, err
		}
	}
	if modes > 1 {
		return nil, apperror.NewValidation("set only one of count, numbers, golden")
	}

	var specific []int64
	if len(req.Numbers) > 0 {
		var err error
		if specific, err = s.normalizeNumbers(req.Numbers); err != nil {
			return nil, err
		}
	}

	var res *Reservation
	var stats allocStats
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// Counter before rows, same order as allocate.
		if modes > 0 {
			if _, err := s.counter.GetForUpdate(ctx); err != nil {
				return fmt.Errorf("lock counter: %w", err)
			}
		}
		sess, err := s.lockActiveSession(ctx, actor, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		expiresAt := now.Add(sess.TTL())
		requested := sess.RequestedCount + req.Count + len(specific) + req.Golden
		if err := s.sessions.Extend(ctx, sess.ID, expiresAt, requested); err != nil {
			return fmt.Errorf("extend session: %w", err)
		}
		if _, err := s.numbers.ExtendSession(ctx, sess.ID, expiresAt); err != nil {
			return fmt.Errorf("extend numbers: %w", err)
		}
		sess.ExpiresAt = expiresAt
		sess.RequestedCount = requested

		hold := s.holdFor(sess)
		hold.UserID = actor.UserID
		var added []int64
		switch {
		case req.Count > 0:
			added, stats, err = s.allocate(ctx, hold, req.Count, false, actor.IsAdmin)
		case len(specific) > 0:
			added, stats, err = s.reserveSpecific(ctx, hold, specific)
		case req.Golden > 0:
			added, stats, err = s.allocate(ctx, hold, req.Golden, true, true)
		}
		if err != nil {
			return err
		}
		if added == nil {
			added = []int64{}
		}
		res = &Reservation{Session: sess, Numbers: added}
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	s.reportAlloc(stats)
	logger.Info(ctx, "session extended",
		"session_id", sessionID,
		"expires_at", res.Session.ExpiresAt,
		"added", res.Numbers)
	return res, nil
}

// CancelSession releases the session's reserved numbers and cancels it.
func (s *Service) CancelSession(ctx context.Context, actor ledger.Actor, sessionID string) (int64, error) {
	return s.finish(ctx, actor, sessionID, ledger.SessionCancelled)
}

// CompleteSession releases the session's unused numbers and completes it.
func (s *Service) CompleteSession(ctx context.Context, actor ledger.Actor, sessionID string) (int64, error) {
	return s.finish(ctx, actor, sessionID, ledger.SessionCompleted)
}

func (s *Service) finish(ctx context.Context, actor ledger.Actor, sessionID string, status ledger.SessionStatus) (int64, error) {
	var released int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sess, err := s.lockSession(ctx, actor, sessionID)
		if err != nil {
			return err
		}
		if sess.Status.IsTerminal() {
			return apperror.NewSessionNotActive(sess.ID, string(sess.Status))
		}

		released, err = s.numbers.ReleaseSession(ctx, sess.ID, s.now())
		if err != nil {
			return fmt.Errorf("release session numbers: %w", err)
		}
		if err := s.sessions.SetStatus(ctx, sess.ID, status); err != nil {
			return fmt.Errorf("set session status: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	reason := ledger.ReasonCompleted
	if status == ledger.SessionCancelled {
		reason = ledger.ReasonCancelled
	}
	s.observer.NumbersReleased(reason, released)
	logger.Info(ctx, "session finished",
		"session_id", sessionID,
		"status", status,
		"released", released)
	return released, nil
}

// GetReserved returns the numbers currently reserved under the session.
func (s *Service) GetReserved(ctx context.Context, actor ledger.Actor, sessionID string) ([]ledger.NumberEntry, error) {
	if _, err := s.GetSession(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.numbers.ListReserved(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list reserved: %w", err)
	}
	return entries, nil
}

// GetSession returns one session.
func (s *Service) GetSession(ctx context.Context, actor ledger.Actor, sessionID string) (*ledger.Session, error) {
	if !id.ValidSessionID(sessionID) {
		return nil, apperror.NewNotFound("session", sessionID)
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(sess) {
		return nil, apperror.NewForbidden("session belongs to another user")
	}
	return sess, nil
}

// CounterState returns the allocation counter. Administrators only.
func (s *Service) CounterState(ctx context.Context, actor ledger.Actor) (*ledger.Counter, error) {
	if !actor.IsAdmin {
		return nil, apperror.NewForbidden("only administrators may read the counter")
	}
	return s.counter.Get(ctx)
}

// ImportHistory records numerics consumed before the journal existed as
// assigned and raises base_start and next_normal_start past the largest one.
func (s *Service) ImportHistory(ctx context.Context, numerics []int64) (*ImportResult, error) {
	numbers, err := s.normalizeNumbers(numerics)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.counter.GetForUpdate(ctx); err != nil {
			return fmt.Errorf("lock counter: %w", err)
		}
		n, err := s.numbers.UpsertAssigned(ctx, numbers, s.now())
		if err != nil {
			return fmt.Errorf("upsert assigned: %w", err)
		}
		if err := s.counter.RaiseBase(ctx, numbers[len(numbers)-1]+1); err != nil {
			return fmt.Errorf("raise base: %w", err)
		}
		res.Imported = n
		res.Counter, err = s.counter.Get(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "history imported",
		"imported", res.Imported,
		"base_start", res.Counter.BaseStart,
		"next_normal_start", res.Counter.NextNormalStart)
	return res, nil
}

// --- helpers ---

func (s *Service) openSession(ctx context.Context, actor ledger.Actor, equipmentID int64, count int, ttl time.Duration) (*ledger.Session, error) {
	if equipmentID <= 0 {
		return nil, apperror.NewValidation("equipment_id is required").WithDetail("field", "equipment_id")
	}
	if _, err := s.equipment.GetByID(ctx, equipmentID); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &ledger.Session{
		ID:             id.NewSessionID(),
		UserID:         actor.UserID,
		EquipmentID:    equipmentID,
		RequestedCount: count,
		Status:         ledger.SessionActive,
		TTLSeconds:     int(ttl / time.Second),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) lockSession(ctx context.Context, actor ledger.Actor, sessionID string) (*ledger.Session, error) {
	if !id.ValidSessionID(sessionID) {
		return nil, apperror.NewNotFound("session", sessionID)
	}
	sess, err := s.sessions.GetForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(sess) {
		return nil, apperror.NewForbidden("session belongs to another user")
	}
	return sess, nil
}

func (s *Service) lockActiveSession(ctx context.Context, actor ledger.Actor, sessionID string) (*ledger.Session, error) {
	sess, err := s.lockSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive(s.now()) {
		return nil, apperror.NewSessionNotActive(sess.ID, string(sess.EffectiveStatus(s.now())))
	}
	return sess, nil
}

func (s *Service) holdFor(sess *ledger.Session) ledger.Hold {
	now := s.now()
	return ledger.Hold{
		UserID:     sess.UserID,
		SessionID:  sess.ID,
		ReservedAt: now,
		ExpiresAt:  now.Add(sess.TTL()),
	}
}

func (s *Service) ttl(requested time.Duration) (time.Duration, error) {
	if requested == 0 {
		return s.cfg.DefaultTTL, nil
	}
	if requested < time.Second || requested > s.cfg.MaxTTL {
		return 0, apperror.NewValidation(fmt.Sprintf("ttl must be between 1s and %s", s.cfg.MaxTTL)).
			WithDetail("field", "ttl_seconds")
	}
	return requested, nil
}

func (s *Service) validateCount(field string, n int) error {
	if n < 1 || n > s.cfg.MaxBatch {
		return apperror.NewValidation(fmt.Sprintf("%s must be between 1 and %d", field, s.cfg.MaxBatch)).
			WithDetail("field", field)
	}
	return nil
}

// normalizeNumbers sorts, deduplicates and range-checks explicit numerics.
func (s *Service) normalizeNumbers(in []int64) ([]int64, error) {
	if len(in) == 0 {
		return nil, apperror.NewValidation("numbers are required").WithDetail("field", "numbers")
	}
	out := slices.Clone(in)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] < 1 || out[len(out)-1] > s.cfg.MaxNumeric {
		return nil, apperror.NewValidation(fmt.Sprintf("numbers must be between 1 and %d", s.cfg.MaxNumeric)).
			WithDetail("field", "numbers")
	}
	if len(out) > s.cfg.MaxBatch {
		return nil, apperror.NewValidation(fmt.Sprintf("at most %d numbers per request", s.cfg.MaxBatch)).
			WithDetail("field", "numbers")
	}
	return out, nil
}

func (s *Service) reportAlloc(st allocStats) {
	if st.recycled > 0 {
		s.observer.NumbersReserved(ledger.SourceRecycled, st.recycled)
	}
	if st.minted > 0 {
		s.observer.NumbersReserved(ledger.SourceMinted, st.minted)
	}
	if st.specific > 0 {
		s.observer.NumbersReserved(ledger.SourceSpecific, st.specific)
	}
	if st.expired > 0 {
		s.observer.NumbersReleased(ledger.ReasonExpired, st.expired)
	}
}

func (s *Service) rejected(err error) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return
	}
	if apperror.IsConflict(err) || apperror.IsPrecondition(err) || apperror.IsForbidden(err) {
		s.observer.AllocationRejected(appErr.Code)
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10
	case limit > 100:
		return 100
	default:
		return limit
	}
}
