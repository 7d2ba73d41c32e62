package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics.LoginsTotal == nil || metrics.PermissionChecksTotal == nil || metrics.TokenStoreOperationsTotal == nil {
		t.Fatal("Expected all metrics to be initialized")
	}

	metrics.RecordLogin("success")
	metrics.RecordPermissionCheck("allowed")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "backoffice_") {
			t.Errorf("Metric %s is missing the backoffice_ prefix", mf.GetName())
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var metrics *Metrics

	metrics.RecordLogin("success")
	metrics.RecordTokenRefresh("failure")
	metrics.RecordLogout()
	metrics.SetAuthenticated(true)
	metrics.RecordPermissionResolve("ready")
	metrics.RecordPermissionCheck("denied")
	metrics.RecordTokenStoreOperation("load", "file", time.Now(), nil)
}

func TestMetrics_SessionMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordLogin("success")
	metrics.RecordLogin("failure")
	metrics.RecordLogin("failure")
	metrics.RecordTokenRefresh("success")
	metrics.RecordLogout()
	metrics.SetAuthenticated(true)

	if got := testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("failure")); got != 2 {
		t.Errorf("Expected 2 failed logins, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.TokenRefreshTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 refresh, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.LogoutsTotal); got != 1 {
		t.Errorf("Expected 1 logout, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != 1 {
		t.Errorf("Expected authenticated gauge 1, got %v", got)
	}

	metrics.SetAuthenticated(false)
	if got := testutil.ToFloat64(metrics.SessionsActive); got != 0 {
		t.Errorf("Expected authenticated gauge 0, got %v", got)
	}
}

func TestMetrics_TokenStoreMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordTokenStoreOperation("save", "redis", time.Now(), nil)
	metrics.RecordTokenStoreOperation("save", "redis", time.Now(), errors.New("READONLY"))

	if got := testutil.ToFloat64(metrics.TokenStoreOperationsTotal.WithLabelValues("save", "redis", "success")); got != 1 {
		t.Errorf("Expected 1 successful save, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.TokenStoreOperationsTotal.WithLabelValues("save", "redis", "error")); got != 1 {
		t.Errorf("Expected 1 failed save, got %v", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/nav/{resource}/actions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"no"}`))
	})

	for _, resource := range []string{"brands", "products"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/nav/"+resource+"/actions", nil))
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/nav/{resource}/actions", "403"))
	if got != 2 {
		t.Errorf("Expected 2 requests under the route template, got %v", got)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	wrapped := HTTPMetricsMiddleware(nil)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordPermissionResolve("fallback")

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `backoffice_permission_resolves_total{outcome="fallback"} 1`) {
		t.Errorf("Expected resolve counter in output, got:\n%s", rec.Body.String())
	}
}
