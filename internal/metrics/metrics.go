// Package metrics exposes the prometheus counters/histograms/gauges
// the store and recipe layers report against, grounded on the
// teacher's pkg/metrics.Metrics (same promauto constructor shape,
// repointed at CRDT/store/recipe concerns instead of HTTP/analysis
// ones).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric the store and recipe packages report
// against.
type Metrics struct {
	mergesTotal        *prometheus.CounterVec
	divergenceTotal    *prometheus.CounterVec
	opsAppliedTotal    *prometheus.CounterVec
	opsRejectedTotal   *prometheus.CounterVec
	driverSendTotal    *prometheus.CounterVec
	driverSendDuration *prometheus.HistogramVec
	waitQueueDepth     prometheus.Gauge
	retryLedgerDepth   prometheus.Gauge
	subscriberCount    prometheus.Gauge

	recipeNormalizeTotal *prometheus.CounterVec
	recipeNormalizeDur   prometheus.Histogram
}

// New constructs and registers every metric against the default
// prometheus registry.
func New() *Metrics {
	return &Metrics{
		mergesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arcs_crdt_merges_total",
			Help: "Total number of CRDT model merges performed, by model kind.",
		}, []string{"kind"}),

		divergenceTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arcs_crdt_divergence_errors_total",
			Help: "Total number of merges that raised a DivergenceError, by model kind.",
		}, []string{"kind"}),

		opsAppliedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arcs_crdt_operations_applied_total",
			Help: "Total number of operations successfully applied to a model.",
		}, []string{"op_type"}),

		opsRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arcs_crdt_operations_rejected_total",
			Help: "Total number of operations rejected by applyOperation (stale, duplicate, malformed).",
		}, []string{"op_type"}),

		driverSendTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arcs_driver_send_total",
			Help: "Total number of driver Send calls, by driver key and outcome.",
		}, []string{"key", "outcome"}),

		driverSendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arcs_driver_send_duration_seconds",
			Help:    "Duration of driver Send calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"key"}),

		waitQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arcs_store_wait_queue_depth",
			Help: "Current number of entities awaiting backing-store materialization.",
		}),

		retryLedgerDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arcs_store_retry_ledger_depth",
			Help: "Current number of driver keys with pending retried writes.",
		}),

		subscriberCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arcs_store_subscriber_count",
			Help: "Current number of proxies subscribed to model updates.",
		}),

		recipeNormalizeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arcs_recipe_normalize_total",
			Help: "Total number of recipe Normalize calls, by outcome.",
		}, []string{"outcome"}),

		recipeNormalizeDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arcs_recipe_normalize_duration_seconds",
			Help:    "Duration of recipe Normalize calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordMerge(kind string) { m.mergesTotal.WithLabelValues(kind).Inc() }

func (m *Metrics) RecordDivergence(kind string) { m.divergenceTotal.WithLabelValues(kind).Inc() }

func (m *Metrics) RecordOpApplied(opType string) { m.opsAppliedTotal.WithLabelValues(opType).Inc() }

func (m *Metrics) RecordOpRejected(opType string) { m.opsRejectedTotal.WithLabelValues(opType).Inc() }

func (m *Metrics) RecordDriverSend(key string, ok bool, d time.Duration) {
	outcome := "rejected"
	if ok {
		outcome = "accepted"
	}
	m.driverSendTotal.WithLabelValues(key, outcome).Inc()
	m.driverSendDuration.WithLabelValues(key).Observe(d.Seconds())
}

func (m *Metrics) SetWaitQueueDepth(n int)   { m.waitQueueDepth.Set(float64(n)) }
func (m *Metrics) SetRetryLedgerDepth(n int) { m.retryLedgerDepth.Set(float64(n)) }
func (m *Metrics) SetSubscriberCount(n int)  { m.subscriberCount.Set(float64(n)) }

func (m *Metrics) RecordRecipeNormalize(ok bool, d time.Duration) {
	outcome := "invalid"
	if ok {
		outcome = "ok"
	}
	m.recipeNormalizeTotal.WithLabelValues(outcome).Inc()
	m.recipeNormalizeDur.Observe(d.Seconds())
}
