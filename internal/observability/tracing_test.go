package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pitabwire/cmsadmin/internal/config"
)

// recordSpans installs an always-sampling provider that keeps finished spans
// in memory for the duration of the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func TestInitTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TracingConfig
		wantErr bool
	}{
		{"disabled", config.TracingConfig{Exporter: "zipkin"}, false},
		{"stdout", config.TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 1}, false},
		{"unsupported exporter", config.TracingConfig{Enabled: true, Exporter: "zipkin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := InitTracing(context.Background(), tt.cfg, "cmsadmin", "test")
			if tt.wantErr {
				if err == nil {
					t.Fatal("InitTracing() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("InitTracing() error = %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
		})
	}
}

func TestRatioSampler(t *testing.T) {
	tests := []struct {
		rate float64
		root string
	}{
		{0, "TraceIDRatioBased{0.1}"},
		{-3, "TraceIDRatioBased{0.1}"},
		{0.25, "TraceIDRatioBased{0.25}"},
		{1, "AlwaysOnSampler"},
		{7, "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		desc := ratioSampler(tt.rate).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+tt.root) {
			t.Errorf("ratioSampler(%v) = %s, want root %s", tt.rate, desc, tt.root)
		}
	}
}

func TestStartSpan_recordsAttributesAndParent(t *testing.T) {
	exporter := recordSpans(t)

	ctx, submit := StartSpan(context.Background(), "form.submit",
		AttrSessionID.String("s-1"),
		AttrSubjectID.String("user-1"),
	)
	_, get := StartSpan(ctx, "store.cache_get", AttrCollectionID.String("products"), AttrCacheHit.Bool(false))
	get.End()
	submit.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.Parent.SpanID() != parent.SpanContext.SpanID() {
		t.Error("store.cache_get should be a child of form.submit")
	}
	attrs := spanAttrMap(child)
	if attrs["cms.collection_id"] != "products" || attrs["cms.cache_hit"] != "false" {
		t.Errorf("child attributes = %v", attrs)
	}
	if got := spanAttrMap(parent)["cms.subject_id"]; got != "user-1" {
		t.Errorf("cms.subject_id = %q, want user-1", got)
	}
}

func TestEndSpanWithError(t *testing.T) {
	exporter := recordSpans(t)

	_, failed := StartSpan(context.Background(), "blob.upload")
	EndSpanWithError(failed, errors.New("disk full"))
	_, ok := StartSpan(context.Background(), "blob.list")
	EndSpanWithError(ok, nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "disk full" {
		t.Errorf("failed span status = %+v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Error("failed span should record the error event")
	}
	if spans[1].Status.Code == codes.Error {
		t.Error("successful span should not carry an error status")
	}
}

func TestTraceIDFromContext(t *testing.T) {
	recordSpans(t)

	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("TraceIDFromContext(no span) = %q, want empty", got)
	}
	ctx, span := StartSpan(context.Background(), "catalog.reload")
	defer span.End()
	if got := TraceIDFromContext(ctx); len(got) != 32 {
		t.Errorf("TraceIDFromContext() = %q, want a 32-char hex id", got)
	}
}

func TestTracingMiddleware(t *testing.T) {
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		status      int
		traceparent string
		wantName    string
		wantError   bool
	}{
		{"route pattern", http.StatusOK, "", "GET /api/collections/{collectionId}", false},
		{"server error", http.StatusServiceUnavailable, "", "GET /api/collections/{collectionId}", true},
		{"client error", http.StatusNotFound, "", "GET /api/collections/{collectionId}", false},
		{"continues inbound trace", http.StatusOK, "00-" + traceID + "-00f067aa0ba902b7-01", "GET /api/collections/{collectionId}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := recordSpans(t)

			r := chi.NewRouter()
			r.Use(TracingMiddleware)
			r.Get("/api/collections/{collectionId}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/collections/products", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			s := spans[0]
			if s.Name != tt.wantName {
				t.Errorf("span name = %q, want %q", s.Name, tt.wantName)
			}
			if got := spanAttrMap(s)["http.response.status_code"]; got != strconv.Itoa(tt.status) {
				t.Errorf("status attribute = %q, want %d", got, tt.status)
			}
			if (s.Status.Code == codes.Error) != tt.wantError {
				t.Errorf("span status = %v, wantError %v", s.Status.Code, tt.wantError)
			}
			if rec.Header().Get("traceparent") == "" {
				t.Error("response should carry the traceparent header")
			}
			if tt.traceparent != "" && s.SpanContext.TraceID().String() != traceID {
				t.Errorf("trace id = %s, want inbound %s", s.SpanContext.TraceID(), traceID)
			}
		})
	}
}

func spanAttrMap(s tracetest.SpanStub) map[string]string {
	m := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}
