// Package metrics provides Prometheus metrics collection for every
// platform service.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Ingestion pipeline (§4.7-§4.9)
	IngestedEventsTotal  *prometheus.CounterVec
	RejectedEventsTotal  *prometheus.CounterVec
	QueueDepth           *prometheus.GaugeVec
	QueuePushesRejected  *prometheus.CounterVec
	StorageBatchDuration *prometheus.HistogramVec
	StorageBatchSize     *prometheus.HistogramVec

	// Rate limiting and quota (§4.2)
	RateLimitRejectionsTotal *prometheus.CounterVec
	QuotaExceededTotal       *prometheus.CounterVec

	// Circuit breaker (§4.3)
	CircuitBreakerState         *prometheus.GaugeVec
	CircuitBreakerRejectedTotal *prometheus.CounterVec

	// Aggregation jobs (§4.11)
	AggregationRunDuration *prometheus.HistogramVec
	AggregationRowsWritten *prometheus.CounterVec

	// Database metrics
	DatabaseQueriesTotal    *prometheus.CounterVec
	DatabaseQueryDuration   *prometheus.HistogramVec
	DatabaseConnectionsOpen prometheus.Gauge

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests"},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "http_requests_in_flight", Help: "Current number of HTTP requests being processed"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "errors_total", Help: "Total number of errors"},
			[]string{"service", "type", "operation"},
		),

		IngestedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ingested_events_total", Help: "Total number of log events accepted into a project's queue"},
			[]string{"project_id"},
		),
		RejectedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rejected_events_total", Help: "Total number of log events rejected by validation"},
			[]string{"project_id", "reason"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "queue_depth", Help: "Current depth of a project's ingestion queue"},
			[]string{"project_id"},
		),
		QueuePushesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "queue_pushes_rejected_total", Help: "Total number of batches rejected due to queue backpressure"},
			[]string{"project_id"},
		),
		StorageBatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_batch_duration_seconds",
				Help:    "Duration of a storage worker's batch write",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"project_id"},
		),
		StorageBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_batch_size",
				Help:    "Number of records written per storage worker batch",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"project_id"},
		),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "rate_limit_rejections_total", Help: "Total number of requests rejected by the rate limiter"},
			[]string{"project_id", "window"},
		),
		QuotaExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "quota_exceeded_total", Help: "Total number of requests rejected for exceeding a daily quota"},
			[]string{"project_id"},
		),

		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)"},
			[]string{"service"},
		),
		CircuitBreakerRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "circuit_breaker_rejected_total", Help: "Total number of calls rejected by an open circuit breaker"},
			[]string{"service"},
		),

		AggregationRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregation_run_duration_seconds",
				Help:    "Duration of an aggregation job run",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"job"},
		),
		AggregationRowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aggregation_rows_written_total", Help: "Total number of rows written by an aggregation job"},
			[]string{"job"},
		),

		DatabaseQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "database_queries_total", Help: "Total number of database queries"},
			[]string{"service", "operation", "status"},
		),
		DatabaseQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "database_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"service", "operation"},
		),
		DatabaseConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "database_connections_open", Help: "Current number of open database connections"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "service_uptime_seconds", Help: "Service uptime in seconds"},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "service_info", Help: "Service information"},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.IngestedEventsTotal,
			m.RejectedEventsTotal,
			m.QueueDepth,
			m.QueuePushesRejected,
			m.StorageBatchDuration,
			m.StorageBatchSize,
			m.RateLimitRejectionsTotal,
			m.QuotaExceededTotal,
			m.CircuitBreakerState,
			m.CircuitBreakerRejectedTotal,
			m.AggregationRunDuration,
			m.AggregationRowsWritten,
			m.DatabaseQueriesTotal,
			m.DatabaseQueryDuration,
			m.DatabaseConnectionsOpen,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordIngested records an accepted log event.
func (m *Metrics) RecordIngested(projectID string) {
	m.IngestedEventsTotal.WithLabelValues(projectID).Inc()
}

// RecordRejected records a validation-rejected log event.
func (m *Metrics) RecordRejected(projectID, reason string) {
	m.RejectedEventsTotal.WithLabelValues(projectID, reason).Inc()
}

// SetQueueDepth reports a project's current queue depth.
func (m *Metrics) SetQueueDepth(projectID string, depth int64) {
	m.QueueDepth.WithLabelValues(projectID).Set(float64(depth))
}

// RecordQueueRejection records a backpressure rejection.
func (m *Metrics) RecordQueueRejection(projectID string) {
	m.QueuePushesRejected.WithLabelValues(projectID).Inc()
}

// RecordStorageBatch records a completed storage worker batch write.
func (m *Metrics) RecordStorageBatch(projectID string, size int, duration time.Duration) {
	m.StorageBatchSize.WithLabelValues(projectID).Observe(float64(size))
	m.StorageBatchDuration.WithLabelValues(projectID).Observe(duration.Seconds())
}

// RecordRateLimitRejection records a rate-limited request.
func (m *Metrics) RecordRateLimitRejection(projectID, window string) {
	m.RateLimitRejectionsTotal.WithLabelValues(projectID, window).Inc()
}

// RecordQuotaExceeded records a daily-quota rejection.
func (m *Metrics) RecordQuotaExceeded(projectID string) {
	m.QuotaExceededTotal.WithLabelValues(projectID).Inc()
}

// SetCircuitBreakerState reports a service's current circuit breaker state.
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerRejection records a call rejected by an open circuit.
func (m *Metrics) RecordCircuitBreakerRejection(service string) {
	m.CircuitBreakerRejectedTotal.WithLabelValues(service).Inc()
}

// RecordAggregationRun records a completed aggregation job run.
func (m *Metrics) RecordAggregationRun(job string, rows int, duration time.Duration) {
	m.AggregationRunDuration.WithLabelValues(job).Observe(duration.Seconds())
	m.AggregationRowsWritten.WithLabelValues(job).Add(float64(rows))
}

// RecordDatabaseQuery records a database query.
func (m *Metrics) RecordDatabaseQuery(service, operation, status string, duration time.Duration) {
	m.DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// SetDatabaseConnections sets the number of open database connections.
func (m *Metrics) SetDatabaseConnections(count int) {
	m.DatabaseConnectionsOpen.Set(float64(count))
}

// UpdateUptime updates the service uptime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests counter.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }

// DecrementInFlight decrements the in-flight requests counter.
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

func getEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return getEnvironment() != "production"
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
