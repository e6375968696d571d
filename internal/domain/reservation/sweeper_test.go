package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docjournal/internal/domain/ledger"
)

type countingObserver struct {
	ledger.NopObserver
	expired  int64
	released int64
	sweeps   int
}

func (o *countingObserver) SessionsExpired(n int64) { o.expired += n }

func (o *countingObserver) NumbersReleased(reason string, n int64) {
	if reason == ledger.ReasonExpired {
		o.released += n
	}
}

func (o *countingObserver) SweepFinished(time.Duration, error) { o.sweeps++ }

func TestSweeper_ReleasesAfterTTL(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	obs := &countingObserver{}
	sweeper := NewSweeper(f.store, f.store.Repositories(), time.Second, obs)
	sweeper.SetClock(f.clock.Now)

	start, err := f.svc.StartSession(ctx, alice, StartRequest{EquipmentID: f.eqID, Count: 2, TTL: time.Second})
	require.NoError(t, err)

	res, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.SessionsExpired, "nothing is overdue yet")

	f.clock.Advance(2 * time.Second)

	res, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SessionsExpired)
	assert.Equal(t, int64(2), res.NumbersReleased)
	assert.Equal(t, int64(1), obs.expired)
	assert.Equal(t, int64(2), obs.released)
	assert.Equal(t, 2, obs.sweeps)

	sess, _ := f.store.Session(start.Session.ID)
	assert.Equal(t, ledger.SessionExpired, sess.Status)
	for _, n := range start.Numbers {
		e, _ := f.store.Entry(n)
		assert.Equal(t, ledger.StatusReleased, e.Status)
	}

	again, err := f.svc.StartSession(ctx, bob, StartRequest{EquipmentID: f.eqID, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, start.Numbers, again.Numbers, "released numbers are re-reservable")

	res, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.SessionsExpired)
	assert.Zero(t, res.NumbersReleased)
}

func TestSweeper_ReleasesOrphanedNumbers(t *testing.T) {
	f := newFixture(t, Config{})
	sweeper := NewSweeper(f.store, f.store.Repositories(), 0, nil)
	sweeper.SetClock(f.clock.Now)

	past := f.clock.Now().Add(-time.Minute)
	ghost := "gone"
	f.store.Seed(ledger.NumberEntry{Numeric: 9, Status: ledger.StatusReserved, SessionID: &ghost, ExpiresAt: &past})

	res, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.NumbersReleased)

	e, _ := f.store.Entry(9)
	assert.Equal(t, ledger.StatusReleased, e.Status)
}

func TestSweeper_SkipsWhenSchemaMissing(t *testing.T) {
	f := newFixture(t, Config{})
	sweeper := NewSweeper(f.store, f.store.Repositories(), time.Second, nil)
	f.store.SetSchemaReady(false)

	res, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, Config{})
	sweeper := NewSweeper(f.store, f.store.Repositories(), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type brokenSessions struct {
	ledger.SessionRepository
}

func (brokenSessions) ExpireOverdue(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection reset by peer")
}

func TestSweeper_ReportsOtherErrorsWhenSchemaMissing(t *testing.T) {
	f := newFixture(t, Config{})
	obs := &countingObserver{}
	repos := f.store.Repositories()
	repos.Sessions = brokenSessions{repos.Sessions}
	sweeper := NewSweeper(f.store, repos, time.Second, obs)
	f.store.SetSchemaReady(false)

	res, err := sweeper.SweepOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset by peer")
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, obs.sweeps)
}
