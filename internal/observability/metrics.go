package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "cms"

var (
	latencyBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	storageBuckets    = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	bodySizeBuckets   = prometheus.ExponentialBuckets(100, 10, 5)
	uploadSizeBuckets = []float64{1 << 10, 100 << 10, 1 << 20, 10 << 20, 50 << 20, 100 << 20}
)

// Metrics owns the Prometheus instruments of the admin service. The exported
// vectors are the ones handlers and tests read directly.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpRequestSize  *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec

	catalogReloads     prometheus.Counter
	collectionsLoaded  prometheus.Gauge
	collectionsSkipped prometheus.Gauge
	seedRuns           *prometheus.CounterVec

	FormSubmissionsTotal   *prometheus.CounterVec
	FormValidationFailures *prometheus.CounterVec
	FormSessionsOpen       prometheus.Gauge
	EntityValidationsTotal *prometheus.CounterVec

	StorageOperationsTotal *prometheus.CounterVec
	storageDuration        *prometheus.HistogramVec
	uploadBytes            prometheus.Histogram

	capabilityCache *prometheus.CounterVec
}

// InitMetrics creates the instruments and registers them with reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	route := []string{"method", "path_pattern"}

	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, append(route, "status")),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: latencyBuckets,
		}, route),
		httpRequestSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "request_size_bytes",
			Help: "Declared HTTP request body size.", Buckets: bodySizeBuckets,
		}, route),
		httpResponseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "response_size_bytes",
			Help: "HTTP response body size.", Buckets: bodySizeBuckets,
		}, route),

		catalogReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "catalog", Name: "reloads_total",
			Help: "Catalog rebuilds from a store snapshot.",
		}),
		collectionsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "collections_loaded",
			Help: "Collections in the current catalog.",
		}),
		collectionsSkipped: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "collections_skipped",
			Help: "Stored documents that did not decode to a collection.",
		}),
		seedRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "seeds_applied_total",
			Help: "Seed runs by outcome.",
		}, []string{"status"}),

		FormSubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "form", Name: "submissions_total",
			Help: "Collection editor submissions by mode and outcome.",
		}, []string{"mode", "status"}),
		FormValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "form", Name: "validation_failures_total",
			Help: "Collection editor submissions stopped by a validation rule.",
		}, []string{"rule"}),
		FormSessionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "form", Name: "sessions_open",
			Help: "Open collection editor sessions.",
		}),
		EntityValidationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "entity", Name: "validations_total",
			Help: "Entity documents validated against their collection.",
		}, []string{"collection_id", "status"}),

		StorageOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "storage", Name: "operations_total",
			Help: "File storage operations by outcome.",
		}, []string{"operation", "status"}),
		storageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "storage", Name: "operation_duration_seconds",
			Help: "File storage operation latency.", Buckets: storageBuckets,
		}, []string{"operation"}),
		uploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "storage", Name: "upload_bytes",
			Help: "Size of uploaded files.", Buckets: uploadSizeBuckets,
		}),

		capabilityCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "capability", Name: "cache_lookups_total",
			Help: "Capability cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordHTTPRequest(method, pattern string, status int, d time.Duration, reqSize, respSize int) {
	m.httpRequests.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, pattern).Observe(d.Seconds())
	m.httpRequestSize.WithLabelValues(method, pattern).Observe(float64(reqSize))
	m.httpResponseSize.WithLabelValues(method, pattern).Observe(float64(respSize))
}

// RecordCatalogReload notes a rebuild and the resulting catalog size.
func (m *Metrics) RecordCatalogReload(loaded, skipped int) {
	m.catalogReloads.Inc()
	m.collectionsLoaded.Set(float64(loaded))
	m.collectionsSkipped.Set(float64(skipped))
}

func (m *Metrics) RecordSeedApply(err error) {
	m.seedRuns.WithLabelValues(outcome(err)).Inc()
}

// RecordFormSubmission counts a submit; mode is "create" or "update".
func (m *Metrics) RecordFormSubmission(mode string, err error) {
	m.FormSubmissionsTotal.WithLabelValues(mode, outcome(err)).Inc()
}

func (m *Metrics) RecordFormValidationFailure(rule string) {
	m.FormValidationFailures.WithLabelValues(rule).Inc()
}

func (m *Metrics) SetFormSessionsOpen(n int) {
	m.FormSessionsOpen.Set(float64(n))
}

func (m *Metrics) RecordEntityValidation(collectionID string, valid bool) {
	status := "invalid"
	if valid {
		status = "valid"
	}
	m.EntityValidationsTotal.WithLabelValues(collectionID, status).Inc()
}

func (m *Metrics) RecordStorageOperation(operation string, d time.Duration, err error) {
	m.StorageOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	m.storageDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordUpload(bytes int64) {
	m.uploadBytes.Observe(float64(bytes))
}

func (m *Metrics) RecordCapabilityCacheHit()  { m.capabilityCache.WithLabelValues("hit").Inc() }
func (m *Metrics) RecordCapabilityCacheMiss() { m.capabilityCache.WithLabelValues("miss").Inc() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// MetricsMiddleware records request metrics labelled by chi route pattern,
// so path parameters never become label values.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, routePattern(r), status, time.Since(start),
			int(max(r.ContentLength, 0)), ww.BytesWritten())
	})
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern is the matched chi pattern, or the raw path when nothing
// matched.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if p := strings.TrimSuffix(strings.Join(rctx.RoutePatterns, ""), "/*"); p != "" {
		return p
	}
	return r.URL.Path
}
