package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Version and Commit are set with -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

const (
	statusOK    = "ok"
	statusError = "error"

	checkTimeout = 2 * time.Second
)

var errCatalogNotLoaded = errors.New("collection catalog not loaded")

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the body of GET /ready.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult reports one readiness probe.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker is a dependency that can be probed for readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a Ping method to HealthChecker.
type CheckFunc func(ctx context.Context) error

// HealthCheck implements HealthChecker.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// ReadinessChecks lists what /ready probes. The instance is ready once the
// catalog holds its first snapshot and every configured dependency answers.
type ReadinessChecks struct {
	CatalogLoaded func() bool

	Store         HealthChecker
	DocumentCache HealthChecker
	FileStorage   HealthChecker
}

func (c ReadinessChecks) probes() map[string]HealthChecker {
	probes := map[string]HealthChecker{
		"catalog": CheckFunc(func(context.Context) error {
			if c.CatalogLoaded == nil || !c.CatalogLoaded() {
				return errCatalogNotLoaded
			}
			return nil
		}),
	}
	for name, hc := range map[string]HealthChecker{
		"store":          c.Store,
		"document_cache": c.DocumentCache,
		"file_storage":   c.FileStorage,
	} {
		if hc != nil {
			probes[name] = hc
		}
	}
	return probes
}

// HandleHealth serves the liveness probe. It never touches dependencies.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, HealthResponse{Status: statusOK, Version: Version, Commit: Commit})
	}
}

// HandleReady serves the readiness probe, running every check concurrently
// under its own timeout. Any failing check makes the response 503.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		probes := checks.probes()
		names := make([]string, 0, len(probes))
		for name := range probes {
			names = append(names, name)
		}
		results := make([]CheckResult, len(names))

		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				results[i] = runCheck(r.Context(), probes[name], checkTimeout)
				return nil
			})
		}
		_ = g.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: make(map[string]CheckResult, len(names))}
		code := http.StatusOK
		for i, name := range names {
			resp.Checks[name] = results[i]
			if results[i].Status != statusOK {
				resp.Status = "not_ready"
				code = http.StatusServiceUnavailable
			}
		}
		writeProbe(w, code, resp)
	}
}

func runCheck(parent context.Context, hc HealthChecker, timeout time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	err := hc.HealthCheck(ctx)
	res := CheckResult{Status: statusOK, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = statusError
		res.Error = err.Error()
	}
	return res
}

func writeProbe(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
