package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetrics_registersInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)

	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 100)
	m.RecordCatalogReload(3, 1)
	m.RecordSeedApply(nil)
	m.RecordFormSubmission("create", nil)
	m.RecordFormValidationFailure("NAME_REQUIRED")
	m.SetFormSessionsOpen(2)
	m.RecordEntityValidation("products", true)
	m.RecordStorageOperation("upload", time.Millisecond, nil)
	m.RecordUpload(2048)
	m.RecordCapabilityCacheHit()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var got []string
	for _, f := range families {
		got = append(got, f.GetName())
	}
	for _, name := range []string{
		"cms_http_requests_total",
		"cms_http_request_duration_seconds",
		"cms_http_request_size_bytes",
		"cms_http_response_size_bytes",
		"cms_catalog_reloads_total",
		"cms_collections_loaded",
		"cms_collections_skipped",
		"cms_seeds_applied_total",
		"cms_form_submissions_total",
		"cms_form_validation_failures_total",
		"cms_form_sessions_open",
		"cms_entity_validations_total",
		"cms_storage_operations_total",
		"cms_storage_operation_duration_seconds",
		"cms_storage_upload_bytes",
		"cms_capability_cache_lookups_total",
	} {
		if !slices.Contains(got, name) {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestInitMetrics_duplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	InitMetrics(reg)
}

func TestRecorders(t *testing.T) {
	m := InitMetrics(prometheus.NewRegistry())
	storeDown := errors.New("store down")

	m.RecordCatalogReload(4, 1)
	m.RecordCatalogReload(5, 0)
	m.RecordSeedApply(storeDown)
	m.RecordFormSubmission("update", nil)
	m.RecordFormSubmission("update", storeDown)
	m.RecordFormValidationFailure("PATH_REQUIRED")
	m.RecordFormValidationFailure("PATH_REQUIRED")
	m.SetFormSessionsOpen(7)
	m.SetFormSessionsOpen(3)
	m.RecordEntityValidation("products", true)
	m.RecordEntityValidation("products", false)
	m.RecordEntityValidation("products", false)
	m.RecordStorageOperation("delete_folder", 20*time.Millisecond, nil)
	m.RecordStorageOperation("delete_folder", 5*time.Millisecond, errors.New("permission denied"))
	m.RecordCapabilityCacheHit()
	m.RecordCapabilityCacheHit()
	m.RecordCapabilityCacheMiss()

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"catalog reloads", m.catalogReloads, 2},
		{"collections loaded", m.collectionsLoaded, 5},
		{"collections skipped", m.collectionsSkipped, 0},
		{"failed seeds", m.seedRuns.WithLabelValues("error"), 1},
		{"ok submissions", m.FormSubmissionsTotal.WithLabelValues("update", "ok"), 1},
		{"failed submissions", m.FormSubmissionsTotal.WithLabelValues("update", "error"), 1},
		{"validation failures", m.FormValidationFailures.WithLabelValues("PATH_REQUIRED"), 2},
		{"open sessions", m.FormSessionsOpen, 3},
		{"invalid entities", m.EntityValidationsTotal.WithLabelValues("products", "invalid"), 2},
		{"failed deletes", m.StorageOperationsTotal.WithLabelValues("delete_folder", "error"), 1},
		{"cache hits", m.capabilityCache.WithLabelValues("hit"), 2},
		{"cache misses", m.capabilityCache.WithLabelValues("miss"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(m.storageDuration); n == 0 {
		t.Error("storage latency histogram has no series")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		method   string
		target   string
		status   int
		wantPath string
	}{
		{"route pattern label", "/api/collections/{collectionId}", http.MethodGet, "/api/collections/products", http.StatusOK, "/api/collections/{collectionId}"},
		{"error status", "/api/forms/sessions/{sessionId}/submit", http.MethodPost, "/api/forms/sessions/abc/submit", http.StatusUnprocessableEntity, "/api/forms/sessions/{sessionId}/submit"},
		{"unrouted request", "", http.MethodGet, "/raw/path", http.StatusOK, "/raw/path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := InitMetrics(prometheus.NewRegistry())
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})

			var h http.Handler = m.MetricsMiddleware(handler)
			if tt.route != "" {
				r := chi.NewRouter()
				r.Use(m.MetricsMiddleware)
				r.Method(tt.method, tt.route, handler)
				h = r
			}
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.target, nil))

			status := strconv.Itoa(tt.status)
			if got := testutil.ToFloat64(m.httpRequests.WithLabelValues(tt.method, tt.wantPath, status)); got != 1 {
				t.Errorf("requests{%s %s %s} = %v, want 1", tt.method, tt.wantPath, status, got)
			}
			if n := testutil.CollectAndCount(m.httpResponseSize); n != 1 {
				t.Errorf("response size series = %d, want 1", n)
			}
		})
	}
}


func TestHandler_servesRuntimeMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("default registry should expose Go runtime metrics")
	}
}

func TestBucketsAscend(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"latency": latencyBuckets,
		"storage": storageBuckets,
		"body":    bodySizeBuckets,
		"upload":  uploadSizeBuckets,
	} {
		if !slices.IsSorted(buckets) || len(slices.Compact(slices.Clone(buckets))) != len(buckets) {
			t.Errorf("%s buckets = %v, want strictly ascending", name, buckets)
		}
	}
}
