// Package ledgertest provides an in-memory ledger for tests.
//
// Store implements every ledger repository and tx.Manager. Transactions are
// serialized by one mutex, which is stricter than the row locks the postgres
// implementation relies on, and roll back by restoring a snapshot.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"docjournal/internal/core/apperror"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
)

type txKey struct{}

type state struct {
	counter     *ledger.Counter
	numbers     map[int64]ledger.NumberEntry
	sessions    map[string]ledger.Session
	documents   map[int64]ledger.Document
	docKeys     map[string]int64
	docNumerics map[int64]int64
	equipment   map[int64]ledger.Equipment
	factoryNos  map[string]int64
	nextDocID   int64
	nextEqID    int64
}

func newState() state {
	return state{
		numbers:     make(map[int64]ledger.NumberEntry),
		sessions:    make(map[string]ledger.Session),
		documents:   make(map[int64]ledger.Document),
		docKeys:     make(map[string]int64),
		docNumerics: make(map[int64]int64),
		equipment:   make(map[int64]ledger.Equipment),
		factoryNos:  make(map[string]int64),
	}
}

// clone copies the maps. Entity values are copied by value; their pointer
// fields are always replaced, never written through, so sharing them is safe.
func (st state) clone() state {
	c := newState()
	if st.counter != nil {
		v := *st.counter
		c.counter = &v
	}
	for k, v := range st.numbers {
		c.numbers[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	for k, v := range st.documents {
		c.documents[k] = v
	}
	for k, v := range st.docKeys {
		c.docKeys[k] = v
	}
	for k, v := range st.docNumerics {
		c.docNumerics[k] = v
	}
	for k, v := range st.equipment {
		c.equipment[k] = v
	}
	for k, v := range st.factoryNos {
		c.factoryNos[k] = v
	}
	c.nextDocID = st.nextDocID
	c.nextEqID = st.nextEqID
	return c
}

// Store is an in-memory ledger.
type Store struct {
	mu            sync.Mutex
	st            state
	schemaMissing atomic.Bool
	commits       atomic.Int64
	rollbacks     atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// Repositories returns views of the store for every ledger contract.
func (s *Store) Repositories() ledger.Repositories {
	return ledger.Repositories{
		Counter:   counterRepo{s},
		Numbers:   numberRepo{s},
		Sessions:  sessionRepo{s},
		Documents: documentRepo{s},
		Equipment: equipmentRepo{s},
	}
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snapshot
		s.rollbacks.Add(1)
		return err
	}
	s.commits.Add(1)
	return nil
}

// SetSchemaReady toggles the "relation does not exist" failure mode.
func (s *Store) SetSchemaReady(ready bool) {
	s.schemaMissing.Store(!ready)
}

// Rollbacks returns how many transactions were rolled back.
func (s *Store) Rollbacks() int64 {
	return s.rollbacks.Load()
}

func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.schemaMissing.Load() {
		return apperror.NewSchemaNotReady(errors.New(`relation "doc_numbers" does not exist`))
	}
	if ctx.Value(txKey{}) != nil {
		return fn(&s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

// --- test helpers ---

// SetCounter overwrites the counter row.
func (s *Store) SetCounter(baseStart, nextNormalStart int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.counter = &ledger.Counter{BaseStart: baseStart, NextNormalStart: nextNormalStart, UpdatedAt: time.Now()}
}

// CounterState returns a copy of the counter row (1/1 when never touched).
func (s *Store) CounterState() ledger.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.counter == nil {
		return ledger.Counter{BaseStart: 1, NextNormalStart: 1}
	}
	return *s.st.counter
}

// Seed stores entries as given. IsGolden is derived.
func (s *Store) Seed(entries ...ledger.NumberEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.IsGolden = numerator.IsGolden(e.Numeric)
		s.st.numbers[e.Numeric] = e
	}
}

// SeedReleased stores released entries for numerics.
func (s *Store) SeedReleased(at time.Time, numerics ...int64) {
	entries := make([]ledger.NumberEntry, 0, len(numerics))
	for _, n := range numerics {
		released := at
		entries = append(entries, ledger.NumberEntry{Numeric: n, Status: ledger.StatusReleased, ReleasedAt: &released})
	}
	s.Seed(entries...)
}

// Entry returns a copy of one ledger entry.
func (s *Store) Entry(numeric int64) (ledger.NumberEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.numbers[numeric]
	return e, ok
}

// Session returns a copy of one session.
func (s *Store) Session(id string) (ledger.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.sessions[id]
	return v, ok
}

// SessionCount returns how many sessions exist.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.sessions)
}

// DocumentCount returns how many documents exist.
func (s *Store) DocumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.documents)
}

// --- counter ---

type counterRepo struct{ s *Store }

func (st *state) ensureCounter() *ledger.Counter {
	if st.counter == nil {
		st.counter = &ledger.Counter{BaseStart: 1, NextNormalStart: 1, UpdatedAt: time.Now()}
	}
	return st.counter
}

func (r counterRepo) GetForUpdate(ctx context.Context) (*ledger.Counter, error) {
	var out ledger.Counter
	err := r.s.do(ctx, func(st *state) error {
		out = *st.ensureCounter()
		return nil
	})
	return &out, err
}

func (r counterRepo) Get(ctx context.Context) (*ledger.Counter, error) {
	return r.GetForUpdate(ctx)
}

func (r counterRepo) AdvanceNormal(ctx context.Context, next int64) error {
	return r.s.do(ctx, func(st *state) error {
		c := st.ensureCounter()
		c.NextNormalStart = max(c.NextNormalStart, next)
		c.UpdatedAt = time.Now()
		return nil
	})
}

func (r counterRepo) RaiseBase(ctx context.Context, base int64) error {
	return r.s.do(ctx, func(st *state) error {
		c := st.ensureCounter()
		c.BaseStart = max(c.BaseStart, base)
		c.NextNormalStart = max(c.NextNormalStart, base)
		c.UpdatedAt = time.Now()
		return nil
	})
}

// --- numbers ---

type numberRepo struct{ s *Store }

func sortedKeys(m map[int64]ledger.NumberEntry, keep func(ledger.NumberEntry) bool) []int64 {
	out := make([]int64, 0)
	for k, v := range m {
		if keep(v) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r numberRepo) FetchReleasedForUpdate(ctx context.Context, minNumeric int64, goldenOnly bool, limit int) ([]int64, error) {
	var out []int64
	err := r.s.do(ctx, func(st *state) error {
		out = sortedKeys(st.numbers, func(e ledger.NumberEntry) bool {
			return e.Status == ledger.StatusReleased && e.Numeric >= minNumeric && (!goldenOnly || e.IsGolden)
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func reserve(e ledger.NumberEntry, hold ledger.Hold) ledger.NumberEntry {
	user, session := hold.UserID, hold.SessionID
	reservedAt, expiresAt := hold.ReservedAt, hold.ExpiresAt
	e.Status = ledger.StatusReserved
	e.ReservedBy = &user
	e.SessionID = &session
	e.ReservedAt = &reservedAt
	e.ExpiresAt = &expiresAt
	e.ReleasedAt = nil
	return e
}

func release(e ledger.NumberEntry, at time.Time) ledger.NumberEntry {
	e.Status = ledger.StatusReleased
	e.ReservedBy = nil
	e.SessionID = nil
	e.ExpiresAt = nil
	e.ReleasedAt = &at
	return e
}

func (r numberRepo) ReserveExisting(ctx context.Context, numerics []int64, hold ledger.Hold) error {
	return r.s.do(ctx, func(st *state) error {
		for _, n := range numerics {
			e, ok := st.numbers[n]
			if !ok || e.Status != ledger.StatusReleased {
				continue
			}
			st.numbers[n] = reserve(e, hold)
		}
		return nil
	})
}

func (r numberRepo) InsertReserved(ctx context.Context, numeric int64, hold ledger.Hold) (bool, error) {
	inserted := false
	err := r.s.do(ctx, func(st *state) error {
		if _, ok := st.numbers[numeric]; ok {
			return nil
		}
		st.numbers[numeric] = reserve(ledger.NumberEntry{Numeric: numeric, IsGolden: numerator.IsGolden(numeric)}, hold)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r numberRepo) GetForUpdate(ctx context.Context, numeric int64) (*ledger.NumberEntry, error) {
	var out ledger.NumberEntry
	err := r.s.do(ctx, func(st *state) error {
		e, ok := st.numbers[numeric]
		if !ok {
			return apperror.NewNotFound("number", numeric)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r numberRepo) ListReserved(ctx context.Context, sessionID string) ([]ledger.NumberEntry, error) {
	out := make([]ledger.NumberEntry, 0)
	err := r.s.do(ctx, func(st *state) error {
		for _, n := range sortedKeys(st.numbers, func(e ledger.NumberEntry) bool {
			return e.Status == ledger.StatusReserved && e.SessionID != nil && *e.SessionID == sessionID
		}) {
			out = append(out, st.numbers[n])
		}
		return nil
	})
	return out, err
}

func (r numberRepo) ExtendSession(ctx context.Context, sessionID string, expiresAt time.Time) (int64, error) {
	var n int64
	err := r.s.do(ctx, func(st *state) error {
		for k, e := range st.numbers {
			if e.Status == ledger.StatusReserved && e.SessionID != nil && *e.SessionID == sessionID {
				at := expiresAt
				e.ExpiresAt = &at
				st.numbers[k] = e
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r numberRepo) MarkAssigned(ctx context.Context, numeric int64, at time.Time) error {
	return r.s.do(ctx, func(st *state) error {
		e, ok := st.numbers[numeric]
		if !ok || e.Status != ledger.StatusReserved {
			return apperror.NewPrecondition(apperror.CodeNumberNotReserved, "number is not reserved").
				WithDetail("numeric", numeric)
		}
		e.Status = ledger.StatusAssigned
		e.AssignedAt = &at
		e.ExpiresAt = nil
		st.numbers[numeric] = e
		return nil
	})
}

func (r numberRepo) ReleaseSession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	var n int64
	err := r.s.do(ctx, func(st *state) error {
		for k, e := range st.numbers {
			if e.Status == ledger.StatusReserved && e.SessionID != nil && *e.SessionID == sessionID {
				st.numbers[k] = release(e, at)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r numberRepo) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.do(ctx, func(st *state) error {
		for k, e := range st.numbers {
			if e.Status == ledger.StatusReserved && e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
				st.numbers[k] = release(e, now)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r numberRepo) FilterOccupied(ctx context.Context, numerics []int64) ([]int64, error) {
	out := make([]int64, 0)
	err := r.s.do(ctx, func(st *state) error {
		for _, n := range numerics {
			if e, ok := st.numbers[n]; ok && e.Status != ledger.StatusReleased {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (r numberRepo) UpsertAssigned(ctx context.Context, numerics []int64, at time.Time) (int64, error) {
	var n int64
	err := r.s.do(ctx, func(st *state) error {
		for _, numeric := range numerics {
			e, ok := st.numbers[numeric]
			if !ok {
				e = ledger.NumberEntry{Numeric: numeric, IsGolden: numerator.IsGolden(numeric)}
			}
			assignedAt := at
			e.Status = ledger.StatusAssigned
			e.AssignedAt = &assignedAt
			e.ReservedBy = nil
			e.SessionID = nil
			e.ExpiresAt = nil
			e.ReleasedAt = nil
			st.numbers[numeric] = e
			n++
		}
		return nil
	})
	return n, err
}

// --- sessions ---

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(ctx context.Context, s *ledger.Session) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.sessions[s.ID]; ok {
			return apperror.NewDuplicate("session", "id", s.ID)
		}
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r sessionRepo) Get(ctx context.Context, id string) (*ledger.Session, error) {
	var out ledger.Session
	err := r.s.do(ctx, func(st *state) error {
		v, ok := st.sessions[id]
		if !ok {
			return apperror.NewNotFound("session", id)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r sessionRepo) GetForUpdate(ctx context.Context, id string) (*ledger.Session, error) {
	return r.Get(ctx, id)
}

func (r sessionRepo) SetStatus(ctx context.Context, id string, status ledger.SessionStatus) error {
	return r.s.do(ctx, func(st *state) error {
		v, ok := st.sessions[id]
		if !ok {
			return apperror.NewNotFound("session", id)
		}
		v.Status = status
		st.sessions[id] = v
		return nil
	})
}

func (r sessionRepo) Extend(ctx context.Context, id string, expiresAt time.Time, requestedCount int) error {
	return r.s.do(ctx, func(st *state) error {
		v, ok := st.sessions[id]
		if !ok {
			return apperror.NewNotFound("session", id)
		}
		v.ExpiresAt = expiresAt
		v.RequestedCount = requestedCount
		st.sessions[id] = v
		return nil
	})
}

func (r sessionRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.do(ctx, func(st *state) error {
		for k, v := range st.sessions {
			if v.Status == ledger.SessionActive && v.ExpiresAt.Before(now) {
				v.Status = ledger.SessionExpired
				st.sessions[k] = v
				n++
			}
		}
		return nil
	})
	return n, err
}

// --- documents ---

type documentRepo struct{ s *Store }

func (r documentRepo) Create(ctx context.Context, d *ledger.Document) error {
	return r.s.do(ctx, func(st *state) error {
		key := d.UniqueKey()
		if _, ok := st.docKeys[key]; ok {
			return apperror.NewDuplicate("document", "doc_name", d.DocName)
		}
		if _, ok := st.docNumerics[d.Numeric]; ok {
			return apperror.NewDuplicate("document", "numeric", strconv.FormatInt(d.Numeric, 10))
		}
		st.nextDocID++
		d.ID = st.nextDocID
		st.documents[d.ID] = *d
		st.docKeys[key] = d.ID
		st.docNumerics[d.Numeric] = d.ID
		return nil
	})
}

func (r documentRepo) GetByID(ctx context.Context, id int64) (*ledger.Document, error) {
	var out ledger.Document
	err := r.s.do(ctx, func(st *state) error {
		v, ok := st.documents[id]
		if !ok {
			return apperror.NewNotFound("document", id)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- equipment ---

type equipmentRepo struct{ s *Store }

func (r equipmentRepo) Create(ctx context.Context, e *ledger.Equipment) error {
	return r.s.do(ctx, func(st *state) error {
		if e.FactoryNo != nil {
			if _, ok := st.factoryNos[*e.FactoryNo]; ok {
				return apperror.NewDuplicate("equipment", "factory_no", *e.FactoryNo)
			}
		}
		st.nextEqID++
		e.ID = st.nextEqID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		st.equipment[e.ID] = *e
		if e.FactoryNo != nil {
			st.factoryNos[*e.FactoryNo] = e.ID
		}
		return nil
	})
}

func (r equipmentRepo) GetByID(ctx context.Context, id int64) (*ledger.Equipment, error) {
	var out ledger.Equipment
	err := r.s.do(ctx, func(st *state) error {
		v, ok := st.equipment[id]
		if !ok {
			return apperror.NewNotFound("equipment", id)
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MustEquipment creates an equipment row and panics on failure.
func (s *Store) MustEquipment(eqType string) int64 {
	e := &ledger.Equipment{EqType: eqType}
	if err := (equipmentRepo{s}).Create(context.Background(), e); err != nil {
		panic(fmt.Sprintf("create equipment: %v", err))
	}
	return e.ID
}
