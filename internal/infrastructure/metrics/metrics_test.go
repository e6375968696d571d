package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
)

func TestLedgerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewLedger(reg)

	l.NumbersReserved(ledger.SourceMinted, 3)
	l.NumbersReserved(ledger.SourceRecycled, 0)
	l.NumbersReleased(ledger.ReasonExpired, 2)
	l.NumberAssigned(true)
	l.NumberAssigned(false)
	l.NumberAssigned(false)
	l.SessionsExpired(4)
	l.AllocationRejected("NUMBERS_UNAVAILABLE")

	assert.Equal(t, 3.0, testutil.ToFloat64(l.reserved.WithLabelValues(ledger.SourceMinted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(l.reserved.WithLabelValues(ledger.SourceRecycled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(l.released.WithLabelValues(ledger.ReasonExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.assigned.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(l.assigned.WithLabelValues("false")))
	assert.Equal(t, 4.0, testutil.ToFloat64(l.expired))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.rejected.WithLabelValues("NUMBERS_UNAVAILABLE")))
}

func TestSweepFinished(t *testing.T) {
	l := NewLedger(prometheus.NewRegistry())

	l.SweepFinished(10*time.Millisecond, nil)
	l.SweepFinished(20*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(l.sweepFailures))
	assert.Greater(t, testutil.ToFloat64(l.lastSweepEpoch), 0.0)
}

func TestHTTPStart(t *testing.T) {
	h := NewHTTP(prometheus.NewRegistry())

	done := h.Start()
	assert.Equal(t, 1.0, testutil.ToFloat64(h.inFlight))

	done("POST", "/api/v1/sessions", 201)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.requests.WithLabelValues("POST", "/api/v1/sessions", "201")))
}

func TestRegisterPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterPool(reg, func() postgres.PoolStats {
		return postgres.PoolStats{TotalConns: 5, AcquiredConns: 2, MaxConns: 20}
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 5.0, values["docjournal_db_pool_total_conns"])
	assert.Equal(t, 2.0, values["docjournal_db_pool_acquired_conns"])
	assert.Equal(t, 20.0, values["docjournal_db_pool_max_conns"])
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewLedger(reg)
	assert.Panics(t, func() { NewLedger(reg) })
}
