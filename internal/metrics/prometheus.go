package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "toypay"

// Outcome labels for processed records
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics for the ledger engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Dispatch metrics
	RecordsTotal      *prometheus.CounterVec
	RecordErrorsTotal *prometheus.CounterVec
	DispatchDuration  prometheus.Histogram

	// Storage metrics
	TransactionsEvictedTotal prometheus.Counter
	TransactionsResident     prometheus.Gauge
	AccountsTotal            prometheus.Gauge
	AccountsLocked           prometheus.Gauge
	Partitions               prometheus.Gauge

	// Worker metrics
	WorkerTasksTotal *prometheus.CounterVec

	// Run metrics
	RunDuration prometheus.Gauge
}

// NewMetrics creates all ledger metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "records_total",
			Help:      "Total number of input records dispatched, by type and outcome",
		}, []string{"type", "outcome"}),
		RecordErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "record_errors_total",
			Help:      "Total number of rejected input records, by error code",
		}, []string{"code"}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "dispatch_duration_seconds",
			Help:      "Histogram of per-record dispatch durations",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10), // 100ns to ~26ms
		}),

		TransactionsEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "transactions_evicted_total",
			Help:      "Total number of transaction records evicted from partition history",
		}),
		TransactionsResident: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "transactions_resident",
			Help:      "Number of transaction records currently held across all partitions",
		}),
		AccountsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "accounts",
			Help:      "Number of known accounts",
		}),
		AccountsLocked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "accounts_locked",
			Help:      "Number of frozen accounts",
		}),
		Partitions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "partitions",
			Help:      "Number of storage partitions",
		}),

		WorkerTasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "tasks_total",
			Help:      "Total number of worker tasks, by status",
		}, []string{"status"}),

		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run",
		}),
	}
}

// RecordDispatch records one dispatched record
func (m *Metrics) RecordDispatch(txType, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(txType, outcome).Inc()
	m.DispatchDuration.Observe(duration)
}

// RecordError records a rejected record
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.RecordErrorsTotal.WithLabelValues(code).Inc()
}

// RecordEviction records a transaction eviction
func (m *Metrics) RecordEviction() {
	if m == nil {
		return
	}
	m.TransactionsEvictedTotal.Inc()
}

// UpdateStorageStats updates storage gauges
func (m *Metrics) UpdateStorageStats(partitions, accounts, locked, resident int) {
	if m == nil {
		return
	}
	m.Partitions.Set(float64(partitions))
	m.AccountsTotal.Set(float64(accounts))
	m.AccountsLocked.Set(float64(locked))
	m.TransactionsResident.Set(float64(resident))
}

// RecordWorkerTask records a completed worker task
func (m *Metrics) RecordWorkerTask(status string) {
	if m == nil {
		return
	}
	m.WorkerTasksTotal.WithLabelValues(status).Inc()
}

// RecordRun records the wall time of a run
func (m *Metrics) RecordRun(duration float64) {
	if m == nil {
		return
	}
	m.RunDuration.Set(duration)
}
