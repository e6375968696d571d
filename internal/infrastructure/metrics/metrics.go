// Package metrics exposes the journal's Prometheus metrics: ledger events,
// HTTP traffic and database pool usage.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
)

const namespace = "docjournal"

// Ledger records number and session events. It implements ledger.Observer.
type Ledger struct {
	reserved       *prometheus.CounterVec
	released       *prometheus.CounterVec
	assigned       *prometheus.CounterVec
	expired        prometheus.Counter
	rejected       *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	sweepFailures  prometheus.Counter
	lastSweepEpoch prometheus.Gauge
}

var _ ledger.Observer = (*Ledger)(nil)

// NewLedger registers the ledger metrics with reg.
func NewLedger(reg prometheus.Registerer) *Ledger {
	f := promauto.With(reg)

	return &Ledger{
		reserved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "numbers_reserved_total",
			Help:      "Numbers reserved, by source (recycled, minted, specific)",
		}, []string{"source"}),
		released: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "numbers_released_total",
			Help:      "Numbers returned to the pool, by reason",
		}, []string{"reason"}),
		assigned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "numbers_assigned_total",
			Help:      "Numbers bound to a filed document",
		}, []string{"golden"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Active sessions flipped to expired by the sweeper",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocations_rejected_total",
			Help:      "Reservation requests that failed, by error code",
		}, []string{"code"}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one sweeper cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Sweeper cycles that returned an error",
		}),
		lastSweepEpoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_last_run_timestamp_seconds",
			Help:      "Unix time of the last finished sweeper cycle",
		}),
	}
}

func (l *Ledger) NumbersReserved(source string, count int) {
	if count > 0 {
		l.reserved.WithLabelValues(source).Add(float64(count))
	}
}

func (l *Ledger) NumbersReleased(reason string, count int64) {
	if count > 0 {
		l.released.WithLabelValues(reason).Add(float64(count))
	}
}

func (l *Ledger) NumberAssigned(golden bool) {
	l.assigned.WithLabelValues(strconv.FormatBool(golden)).Inc()
}

func (l *Ledger) SessionsExpired(count int64) {
	if count > 0 {
		l.expired.Add(float64(count))
	}
}

func (l *Ledger) AllocationRejected(code string) {
	l.rejected.WithLabelValues(code).Inc()
}

func (l *Ledger) SweepFinished(elapsed time.Duration, err error) {
	l.sweepDuration.Observe(elapsed.Seconds())
	l.lastSweepEpoch.SetToCurrentTime()
	if err != nil {
		l.sweepFailures.Inc()
	}
}

// HTTP records request counts, latencies and in-flight requests.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTP registers the HTTP metrics with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)

	return &HTTP{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		}),
	}
}

// Start marks a request in flight and returns the function that records it.
// route should be the matched route template to keep cardinality low.
func (h *HTTP) Start() func(method, route string, status int) {
	start := time.Now()
	h.inFlight.Inc()

	return func(method, route string, status int) {
		h.inFlight.Dec()
		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		h.requests.With(labels).Inc()
		h.duration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// RegisterPool exposes connection pool statistics, sampled at scrape time.
func RegisterPool(reg prometheus.Registerer, stats func() postgres.PoolStats) {
	f := promauto.With(reg)

	gauge := func(name, help string, value func(postgres.PoolStats) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}

	gauge("total_conns", "Connections currently open", func(s postgres.PoolStats) float64 { return float64(s.TotalConns) })
	gauge("acquired_conns", "Connections currently in use", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) })
	gauge("idle_conns", "Idle connections", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) })
	gauge("max_conns", "Configured pool size", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) })
	gauge("acquire_count", "Cumulative successful acquires", func(s postgres.PoolStats) float64 { return float64(s.AcquireCount) })
	gauge("acquire_duration_seconds", "Cumulative time spent acquiring connections",
		func(s postgres.PoolStats) float64 { return s.AcquireDuration.Seconds() })
}
