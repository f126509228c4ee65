package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	consultationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultations_created_total",
			Help: "Total number of consultations created",
		},
		[]string{"type", "patient_type"},
	)

	sequencingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequencing_rejections_total",
			Help: "Total number of consultation creations rejected by sequencing rules",
		},
		[]string{"code"},
	)

	appointmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Total number of appointment status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	deletionPreviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deletion_previews_total",
			Help: "Total number of deletion previews served",
		},
		[]string{"entity", "severity"},
	)

	concurrencyRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concurrent_modification_retries_total",
			Help: "Total number of automatic retries after optimistic-lock conflicts",
		},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries recorded",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordConsultationCreated records a consultation creation
func RecordConsultationCreated(consultationType, patientType string) {
	consultationsCreated.WithLabelValues(consultationType, patientType).Inc()
}

// RecordSequencingRejection records a creation rejected by sequencing rules
func RecordSequencingRejection(code string) {
	sequencingRejections.WithLabelValues(code).Inc()
}

// RecordAppointmentTransition records an appointment status transition
func RecordAppointmentTransition(fromStatus, toStatus string) {
	appointmentTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordDeletionPreview records a deletion preview being served
func RecordDeletionPreview(entity, severity string) {
	deletionPreviews.WithLabelValues(entity, severity).Inc()
}

// RecordConcurrencyRetry records an automatic optimistic-lock retry
func RecordConcurrencyRetry() {
	concurrencyRetries.Inc()
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}
