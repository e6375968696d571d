package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docjournal/internal/core/apperror"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/domain/ledger/ledgertest"
	"docjournal/internal/domain/reservation"
)

var (
	user  = ledger.Actor{UserID: "u1"}
	other = ledger.Actor{UserID: "u2"}
	admin = ledger.Actor{UserID: "adm", IsAdmin: true}
)

type fixture struct {
	store   *ledgertest.Store
	engine  *reservation.Service
	reg     *Service
	eqID    int64
	nowTime time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledgertest.New()
	f := &fixture{
		store:   store,
		nowTime: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.nowTime }
	f.engine = reservation.NewService(store, store.Repositories(), reservation.Config{}, reservation.WithClock(clock))
	f.reg = NewService(store, store.Repositories(), nil)
	f.reg.SetClock(clock)

	eq := &ledger.Equipment{EqType: "relay cabinet"}
	require.NoError(t, f.reg.CreateEquipment(context.Background(), eq))
	f.eqID = eq.ID
	return f
}

func (f *fixture) start(t *testing.T, actor ledger.Actor, count int) *reservation.Reservation {
	t.Helper()
	res, err := f.engine.StartSession(context.Background(), actor, reservation.StartRequest{EquipmentID: f.eqID, Count: count})
	require.NoError(t, err)
	return res
}

func fields(name, note string) ledger.DocumentFields {
	return ledger.DocumentFields{DocName: name, Note: note}
}

func TestAssign_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.start(t, user, 3)
	require.Len(t, first.Numbers, 3)
	for _, n := range first.Numbers {
		assert.False(t, numerator.IsGolden(n))
	}

	res, err := f.reg.Assign(ctx, user, AssignRequest{
		SessionID: first.Session.ID,
		Numeric:   first.Numbers[0],
		Fields:    fields("Doc", "Note"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.Numbers[0], res.Document.Numeric)
	assert.Equal(t, f.eqID, res.Document.EquipmentID)
	assert.Equal(t, "u1", res.Document.UserID)
	assert.Equal(t, f.nowTime, res.Document.RegDate)
	assert.False(t, res.SessionCompleted)

	e, _ := f.store.Entry(first.Numbers[0])
	assert.Equal(t, ledger.StatusAssigned, e.Status)
	assert.Nil(t, e.ExpiresAt)
	assert.NotNil(t, e.AssignedAt)

	second := f.start(t, user, 1)
	_, err = f.reg.Assign(ctx, user, AssignRequest{
		SessionID: second.Session.ID,
		Numeric:   second.Numbers[0],
		Fields:    fields("Doc", "Note"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	e, _ = f.store.Entry(second.Numbers[0])
	assert.Equal(t, ledger.StatusReserved, e.Status, "failed assignment keeps the number reserved")
	sess, _ := f.store.Session(second.Session.ID)
	assert.Equal(t, ledger.SessionActive, sess.Status)
	assert.Equal(t, 1, f.store.DocumentCount())

	res, err = f.reg.Assign(ctx, user, AssignRequest{
		SessionID: second.Session.ID,
		Numeric:   second.Numbers[0],
		Fields:    fields("Doc", "Other note"),
	})
	require.NoError(t, err)
	assert.Equal(t, second.Numbers[0], res.Document.Numeric)
}

func TestAssign_DuplicateIgnoresCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t, user, 2)

	_, err := f.reg.Assign(ctx, user, AssignRequest{SessionID: s.Session.ID, Numeric: s.Numbers[0], Fields: fields("Act", "")})
	require.NoError(t, err)

	_, err = f.reg.Assign(ctx, user, AssignRequest{SessionID: s.Session.ID, Numeric: s.Numbers[1], Fields: fields("  ACT ", "")})
	assert.True(t, apperror.IsConflict(err))
}

func TestAssign_AutoCompletesSession(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, user, 1)

	res, err := f.reg.Assign(context.Background(), user, AssignRequest{
		SessionID: s.Session.ID,
		Numeric:   s.Numbers[0],
		Fields:    fields("Only", ""),
	})
	require.NoError(t, err)
	assert.True(t, res.SessionCompleted)
	assert.Zero(t, res.Released)

	sess, _ := f.store.Session(s.Session.ID)
	assert.Equal(t, ledger.SessionCompleted, sess.Status)
}

func TestAssign_AutoCompleteReleasesUnusableGolden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t, user, 1)

	_, err := f.engine.ReserveGolden(ctx, admin, reservation.GoldenRequest{SessionID: s.Session.ID, Quantity: 1})
	require.NoError(t, err)

	res, err := f.reg.Assign(ctx, user, AssignRequest{SessionID: s.Session.ID, Numeric: s.Numbers[0], Fields: fields("A", "")})
	require.NoError(t, err)
	assert.True(t, res.SessionCompleted)
	assert.Equal(t, int64(1), res.Released)

	e, _ := f.store.Entry(100)
	assert.Equal(t, ledger.StatusReleased, e.Status)
}

func TestAssign_PicksLowestWhenNumericOmitted(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, user, 2)

	res, err := f.reg.Assign(context.Background(), user, AssignRequest{SessionID: s.Session.ID, Fields: fields("A", "")})
	require.NoError(t, err)
	assert.Equal(t, s.Numbers[0], res.Document.Numeric)
}

func TestAssign_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t, user, 2)
	foreign := f.start(t, other, 1)

	golden, err := f.engine.ReserveGolden(ctx, admin, reservation.GoldenRequest{SessionID: s.Session.ID, Quantity: 1})
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor ledger.Actor
		req   AssignRequest
		check func(error) bool
	}{
		{
			name:  "missing doc name",
			actor: user,
			req:   AssignRequest{SessionID: s.Session.ID, Numeric: s.Numbers[0], Fields: fields("  ", "")},
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) },
		},
		{
			name:  "unknown session",
			actor: user,
			req:   AssignRequest{SessionID: "0191d6a8-0000-7000-8000-000000000000", Numeric: 1, Fields: fields("A", "")},
			check: apperror.IsNotFound,
		},
		{
			name:  "foreign session",
			actor: user,
			req:   AssignRequest{SessionID: foreign.Session.ID, Numeric: foreign.Numbers[0], Fields: fields("A", "")},
			check: apperror.IsForbidden,
		},
		{
			name:  "number from another session",
			actor: user,
			req:   AssignRequest{SessionID: s.Session.ID, Numeric: foreign.Numbers[0], Fields: fields("A", "")},
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeNumberNotReserved) },
		},
		{
			name:  "never minted",
			actor: user,
			req:   AssignRequest{SessionID: s.Session.ID, Numeric: 9999, Fields: fields("A", "")},
			check: apperror.IsPrecondition,
		},
		{
			name:  "golden for user",
			actor: user,
			req:   AssignRequest{SessionID: s.Session.ID, Numeric: golden.Numbers[0], Fields: fields("A", "")},
			check: apperror.IsForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reg.Assign(ctx, tt.actor, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	assert.Zero(t, f.store.DocumentCount())

	res, err := f.reg.Assign(ctx, admin, AssignRequest{SessionID: s.Session.ID, Numeric: golden.Numbers[0], Fields: fields("Golden", "")})
	require.NoError(t, err)
	assert.Equal(t, golden.Numbers[0], res.Document.Numeric)
}

func TestAssign_InactiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.start(t, user, 1)
	_, err := f.engine.CancelSession(ctx, user, cancelled.Session.ID)
	require.NoError(t, err)

	_, err = f.reg.Assign(ctx, user, AssignRequest{SessionID: cancelled.Session.ID, Numeric: cancelled.Numbers[0], Fields: fields("A", "")})
	assert.True(t, apperror.HasCode(err, apperror.CodeSessionNotActive))

	overdue := f.start(t, user, 1)
	f.nowTime = f.nowTime.Add(time.Hour)
	_, err = f.reg.Assign(ctx, user, AssignRequest{SessionID: overdue.Session.ID, Numeric: overdue.Numbers[0], Fields: fields("A", "")})
	assert.True(t, apperror.HasCode(err, apperror.CodeSessionNotActive))
}

func TestEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	factory := " F-100 "
	blank := "  "
	eq := &ledger.Equipment{EqType: "meter", FactoryNo: &factory, Label: &blank}
	require.NoError(t, f.reg.CreateEquipment(ctx, eq))
	assert.NotZero(t, eq.ID)
	assert.Equal(t, "F-100", *eq.FactoryNo)
	assert.Nil(t, eq.Label)

	got, err := f.reg.GetEquipment(ctx, eq.ID)
	require.NoError(t, err)
	assert.Equal(t, "meter", got.EqType)

	again := "F-100"
	err = f.reg.CreateEquipment(ctx, &ledger.Equipment{EqType: "meter", FactoryNo: &again})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	err = f.reg.CreateEquipment(ctx, &ledger.Equipment{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.reg.GetEquipment(ctx, 404)
	assert.True(t, apperror.IsNotFound(err))
}

func TestGetDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.start(t, user, 1)

	res, err := f.reg.Assign(ctx, user, AssignRequest{SessionID: s.Session.ID, Numeric: s.Numbers[0], Fields: fields("A", "n")})
	require.NoError(t, err)

	doc, err := f.reg.GetDocument(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", doc.DocName)
	require.NotNil(t, doc.Note)
	assert.Equal(t, "n", *doc.Note)

	_, err = f.reg.GetDocument(ctx, 12345)
	assert.True(t, apperror.IsNotFound(err))
}
