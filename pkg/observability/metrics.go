package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Session metrics
	LoginsTotal       *prometheus.CounterVec
	TokenRefreshTotal *prometheus.CounterVec
	LogoutsTotal      prometheus.Counter
	SessionsActive    prometheus.Gauge

	// Permission metrics
	PermissionResolvesTotal *prometheus.CounterVec
	PermissionChecksTotal   *prometheus.CounterVec

	// Token store metrics
	TokenStoreOperationsTotal   *prometheus.CounterVec
	TokenStoreOperationDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Session metrics
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_session_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_session_token_refresh_total",
				Help: "Total number of startup token refresh attempts",
			},
			[]string{"result"},
		),
		LogoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backoffice_session_logouts_total",
				Help: "Total number of logouts",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_session_authenticated",
				Help: "1 when a user is logged in, 0 otherwise",
			},
		),

		// Permission metrics
		PermissionResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_permission_resolves_total",
				Help: "Total number of permission resolutions by outcome",
			},
			[]string{"outcome"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_permission_checks_total",
				Help: "Total number of permission checks by decision",
			},
			[]string{"decision"},
		),

		// Token store metrics
		TokenStoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_token_store_operations_total",
				Help: "Total number of token store operations",
			},
			[]string{"operation", "backend", "status"},
		),
		TokenStoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_token_store_operation_duration_seconds",
				Help:    "Token store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.LoginsTotal,
		m.TokenRefreshTotal,
		m.LogoutsTotal,
		m.SessionsActive,
		m.PermissionResolvesTotal,
		m.PermissionChecksTotal,
		m.TokenStoreOperationsTotal,
		m.TokenStoreOperationDuration,
	)

	return m
}

// RecordLogin counts a login attempt ("success" or "failure")
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// RecordTokenRefresh counts a startup refresh attempt
func (m *Metrics) RecordTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshTotal.WithLabelValues(result).Inc()
}

// RecordLogout counts a logout
func (m *Metrics) RecordLogout() {
	if m == nil {
		return
	}
	m.LogoutsTotal.Inc()
}

// SetAuthenticated updates the authenticated gauge
func (m *Metrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.SessionsActive.Set(1)
	} else {
		m.SessionsActive.Set(0)
	}
}

// RecordPermissionResolve counts a resolution by outcome (ready, fallback, stale)
func (m *Metrics) RecordPermissionResolve(outcome string) {
	if m == nil {
		return
	}
	m.PermissionResolvesTotal.WithLabelValues(outcome).Inc()
}

// RecordPermissionCheck counts a permission query by decision
func (m *Metrics) RecordPermissionCheck(decision string) {
	if m == nil {
		return
	}
	m.PermissionChecksTotal.WithLabelValues(decision).Inc()
}

// RecordTokenStoreOperation records a token store operation
func (m *Metrics) RecordTokenStoreOperation(operation, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TokenStoreOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.TokenStoreOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			path := pathLabel(r)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// pathLabel prefers the matched route template so path variables do not
// create one series per value
func pathLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
