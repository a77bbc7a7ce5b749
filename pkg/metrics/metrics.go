package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Service operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Database metrics
	TxRetries     *prometheus.CounterVec
	DBConnections prometheus.Gauge

	// Identity cache metrics
	CacheLookups *prometheus.CounterVec

	// Lifecycle metrics
	EmailsSent       *prometheus.CounterVec
	SearchJobsReaped prometheus.Counter
}

// New creates a Metrics instance registered on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Total number of data-access operations by entity, operation and outcome",
			},
			[]string{"entity", "operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_operation_duration_seconds",
				Help:    "Data-access operation latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"entity", "operation"},
		),
		TxRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tx_retries_total",
				Help: "Transactions retried after a serialization or lock conflict",
			},
			[]string{"reason"},
		),
		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_db_connections_open",
			Help: "Number of open database connections",
		}),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_identity_cache_lookups_total",
				Help: "Identity cache lookups by result",
			},
			[]string{"result"}, // hit, miss, error
		),
		EmailsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_emails_sent_total",
				Help: "Email send attempts by result",
			},
			[]string{"result"}, // sent, already_sent, no_address, failed
		),
		SearchJobsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_search_jobs_reaped_total",
			Help: "Running search jobs failed by the stale-job reaper",
		}),
	}
}

// RecordOperation records the outcome and duration of one operation. The
// outcome label is "ok" or the lower-cased domain error code.
func (m *Metrics) RecordOperation(entity, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(domain.GetErrorCode(err))
	}
	m.OperationsTotal.WithLabelValues(entity, operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(entity, operation).Observe(time.Since(start).Seconds())
}

// RecordTxRetry increments the transaction retry counter
func (m *Metrics) RecordTxRetry(reason string) {
	if m == nil {
		return
	}
	m.TxRetries.WithLabelValues(reason).Inc()
}

// RecordCacheLookup increments the identity cache counter
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordEmailSend increments the email send counter
func (m *Metrics) RecordEmailSend(result string) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(result).Inc()
}

// RecordSearchJobsReaped adds n to the reaped search jobs counter
func (m *Metrics) RecordSearchJobsReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SearchJobsReaped.Add(float64(n))
}

// UpdateDBConnections updates open database connections gauge
func (m *Metrics) UpdateDBConnections(count float64) {
	if m == nil {
		return
	}
	m.DBConnections.Set(count)
}
