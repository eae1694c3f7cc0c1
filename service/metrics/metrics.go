package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Webhook Metrics
	webhookOutcomesTotal *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec

	// Record Processing Metrics
	recordsNormalizedTotal *prometheus.CounterVec
	recordsSkippedTotal    *prometheus.CounterVec
	recordsPersistedTotal  *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestBodyBytes *prometheus.HistogramVec

	// Event Publishing Metrics
	eventsPublishedTotal  *prometheus.CounterVec
	eventsPublishDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Webhook Metrics
		webhookOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_outcomes_total",
				Help: "Webhook deliveries by record kind and outcome (persisted, no_data, malformed, incomplete, persistence_error)",
			},
			[]string{"kind", "outcome"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_notifications_total",
				Help: "Transaction notifications accepted for processing",
			},
			[]string{"kind"},
		),

		// Record Processing Metrics
		recordsNormalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_normalized_total",
				Help: "Records produced by the transforms",
			},
			[]string{"kind"},
		),
		recordsSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_skipped_total",
				Help: "Sub-items dropped by filtering or selection",
			},
			[]string{"kind", "reason"},
		),
		recordsPersistedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_persisted_total",
				Help: "Records written to the database",
			},
			[]string{"kind"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestBodyBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_body_bytes",
				Help:    "Declared request body size, for sizing MAX_BODY_BYTES against real webhook deliveries",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"handler"},
		),

		// Event Publishing Metrics
		eventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "record_events_published_total",
				Help: "Record events handed to the message bus",
			},
			[]string{"subject", "status"},
		),
		eventsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "record_events_publish_duration_seconds",
				Help:    "Duration of record event publish calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Webhook metric helpers

// RecordWebhookOutcome records how a delivery ended.
func (m *Metrics) RecordWebhookOutcome(kind, outcome string) {
	m.webhookOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordNotifications records notifications accepted from one delivery.
func (m *Metrics) RecordNotifications(kind string, count int) {
	m.notificationsTotal.WithLabelValues(kind).Add(float64(count))
}

// Record processing metric helpers

// RecordRecordsNormalized records transform output.
func (m *Metrics) RecordRecordsNormalized(kind string, count int) {
	m.recordsNormalizedTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordRecordsSkipped records sub-items that did not become records.
func (m *Metrics) RecordRecordsSkipped(kind, reason string, count int) {
	m.recordsSkippedTotal.WithLabelValues(kind, reason).Add(float64(count))
}

// RecordRecordsPersisted records rows written.
func (m *Metrics) RecordRecordsPersisted(kind string, count int) {
	m.recordsPersistedTotal.WithLabelValues(kind).Add(float64(count))
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordRequestBody records the Content-Length of a request.
func (m *Metrics) RecordRequestBody(handler string, size int64) {
	m.httpRequestBodyBytes.WithLabelValues(handler).Observe(float64(size))
}

// Event publishing metric helpers

// RecordEventsPublished records one publish call covering count events.
func (m *Metrics) RecordEventsPublished(subject, status string, count int, duration float64) {
	m.eventsPublishedTotal.WithLabelValues(subject, status).Add(float64(count))
	m.eventsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
