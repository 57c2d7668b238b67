package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tickettrail.org/internal/ids"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	auditEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_written_total",
			Help: "Audit entries written by action.",
		},
		[]string{"action"},
	)
)

// RegisterMetrics registers all collectors in the default registry.
func RegisterMetrics() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		authLoginsTotal, auditEntriesTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// CountLogin records a login attempt outcome ("success" or "failure").
func CountLogin(outcome string) {
	authLoginsTotal.WithLabelValues(outcome).Inc()
}

// CountAuditEntry records a written audit entry by action tag.
func CountAuditEntry(action string) {
	auditEntriesTotal.WithLabelValues(action).Inc()
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded. Unrecognised shapes pass through unchanged.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if ids.Valid(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
