// Package integration provides a reusable test harness for end-to-end
// integration testing of the CMS admin server. It starts a full HTTP server
// with an in-memory collection store seeded from testdata, a filesystem file
// store, and a test JWT issuer.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/blob"
	"github.com/pitabwire/cmsadmin/internal/capability"
	"github.com/pitabwire/cmsadmin/internal/catalog"
	"github.com/pitabwire/cmsadmin/internal/config"
	"github.com/pitabwire/cmsadmin/internal/form"
	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/internal/store"
	"github.com/pitabwire/cmsadmin/internal/transport"
	"github.com/pitabwire/cmsadmin/model"
)

// filesBaseURL prefixes signed download links. Tests follow them by path.
const filesBaseURL = "http://files.cms.test"

// TestHarness encapsulates a fully wired admin instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Store       store.CollectionStore
	Catalog     *catalog.Registry
	Sessions    *form.Sessions
	Files       *blob.FSStore
	Metrics     *observability.Metrics
	CapResolver *capability.Resolver

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	seedDirs       []string
	policyFile     string
	handlerTimeout time.Duration
	maxUpload      int64
	store          store.CollectionStore
	noStorage      bool
}

// WithSeeds sets the seed directories to load. Relative paths are resolved
// from the testdata directory.
func WithSeeds(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.seedDirs = dirs
	}
}

// WithPolicyFile sets the static policy YAML file for capability resolution.
func WithPolicyFile(path string) HarnessOption {
	return func(c *harnessConfig) {
		c.policyFile = path
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithMaxUpload caps uploads at n bytes.
func WithMaxUpload(n int64) HarnessOption {
	return func(c *harnessConfig) {
		c.maxUpload = n
	}
}

// WithStore replaces the seeded memory store.
func WithStore(st store.CollectionStore) HarnessOption {
	return func(c *harnessConfig) {
		c.store = st
	}
}

// WithoutStorage disables the file storage routes.
func WithoutStorage() HarnessOption {
	return func(c *harnessConfig) {
		c.noStorage = true
	}
}

// NewTestHarness creates and starts a full admin test instance. The server
// and the catalog watch are stopped when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		maxUpload:      1 << 20,
	}
	for _, opt := range opts {
		opt(hc)
	}

	testdataDir := testdataDir()
	if hc.seedDirs == nil {
		hc.seedDirs = []string{"collections"}
	}
	for i, dir := range hc.seedDirs {
		if !filepath.IsAbs(dir) {
			hc.seedDirs[i] = filepath.Join(testdataDir, dir)
		}
	}
	if hc.policyFile == "" {
		hc.policyFile = filepath.Join(testdataDir, "policies.yaml")
	}

	h := &TestHarness{t: t}
	logger := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Step 1: Create JWT issuer.
	h.issuer = newTokenIssuer(t)

	// Step 2: Build config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity = config.IdentityConfig{
		Issuer:     h.issuer.Issuer(),
		Audience:   h.issuer.Audience(),
		JWKSURL:    h.issuer.JWKSURL(),
		Algorithms: []string{"RS256"},
		ClaimPaths: map[string]string{
			"subject_id": "sub",
			"email":      "email",
			"roles":      "roles",
		},
	}
	// Capabilities come from roles only, so the policy file is exercised.
	h.cfg.Access.DefaultCapabilities = nil
	h.cfg.Storage.MaxUpload = hc.maxUpload

	// Step 3: Build the collection store and seed it.
	if hc.store != nil {
		h.Store = hc.store
	} else {
		mem := store.NewMemoryStore()
		seeds, err := catalog.NewLoader().LoadAll(hc.seedDirs)
		if err != nil {
			t.Fatalf("load seeds: %v", err)
		}
		if _, err := catalog.NewSeeder(mem, logger, false).Apply(ctx, seeds); err != nil {
			t.Fatalf("apply seeds: %v", err)
		}
		h.Store = mem
	}

	// Step 4: Build the catalog and follow the store.
	h.Metrics = observability.InitMetrics(prometheus.NewRegistry())
	h.Catalog = catalog.NewRegistry(h.cfg.Locales, time.Minute)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- catalog.Watch(ctx, h.Catalog, h.Store, catalog.WatchOptions{
			Logger:      logger,
			Resubscribe: 50 * time.Millisecond,
			OnReload: func(int, string) {
				h.Metrics.RecordCatalogReload(h.Catalog.Len(), h.Catalog.Skipped())
			},
		})
	}()
	if hc.store == nil {
		h.Eventually(func() bool { return h.Catalog.Loaded() }, "catalog never loaded")
	}

	// Step 5: Build capability resolver.
	roles, err := capability.NewStaticPolicy(hc.policyFile)
	if err != nil {
		t.Fatalf("load policy file: %v", err)
	}
	h.CapResolver = capability.NewResolver(&capability.AccessPolicy{
		DenyFilter:  h.cfg.Access.DenyFilter,
		AdminClaim:  h.cfg.Access.AdminClaim,
		AdminDomain: h.cfg.Access.AdminDomain,
		Roles:       roles,
	}, time.Minute).WithRecorder(h.Metrics)

	// Step 6: Build sessions and file storage.
	h.Sessions = form.NewSessions(form.NewCodec(h.cfg.Locales), h.Store, time.Minute)

	if !hc.noStorage {
		signer, err := blob.NewURLSigner("integration-secret", time.Minute)
		if err != nil {
			t.Fatalf("url signer: %v", err)
		}
		h.Files, err = blob.NewFSStore(t.TempDir(), signer, blob.FSOptions{
			BaseURL:   filesBaseURL,
			MaxUpload: hc.maxUpload,
			Logger:    logger,
		})
		if err != nil {
			t.Fatalf("file store: %v", err)
		}
	}

	// Step 7: Build router with full middleware chain.
	jwks := transport.NewJWKSClient(h.issuer.JWKSURL(), time.Hour, logger)
	deps := transport.Dependencies{
		Config:             h.cfg,
		Logger:             logger,
		Metrics:            h.Metrics,
		Authenticate:       transport.JWTAuthenticator(h.cfg.Identity, jwks.GetKey),
		CapabilityResolver: h.CapResolver,
		Readiness:          observability.ReadinessChecks{CatalogLoaded: h.Catalog.Loaded},
		Catalog:            h.Catalog,
		Sessions:           h.Sessions,
	}
	if h.Files != nil {
		deps.Storage = h.Files
		deps.Files = h.Files
		deps.Readiness.FileStorage = observability.CheckFunc(h.Files.Ping)
	}

	// Step 8: Start test server.
	h.server = httptest.NewServer(transport.NewRouter(deps))
	t.Cleanup(h.server.Close)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-watchErr:
			if err != nil && hc.store == nil {
				t.Errorf("catalog watch: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("catalog watch did not stop")
		}
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// Eventually polls cond until it holds or two seconds pass.
func (h *TestHarness) Eventually(cond func() bool, msg string) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatal(msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// GETWithHeaders performs an authenticated GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, headers)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, token, nil)
}

// Upload sends content as the "file" part of a multipart upload into dir.
func (h *TestHarness) Upload(dir, name string, content []byte, token string) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		h.t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		h.t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		h.t.Fatalf("close multipart writer: %v", err)
	}
	return h.doRequest("POST", "/api/storage/upload?path="+dir, &buf, token, map[string]string{
		"Content-Type":  mw.FormDataContentType(),
		"X-Upload-Size": fmt.Sprint(len(content)),
	})
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := path
	if strings.HasPrefix(path, "/") {
		url = h.server.URL + path
	}

	var bodyReader io.Reader
	isJSON := false
	switch b := body.(type) {
	case nil:
	case io.Reader:
		bodyReader = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
		isJSON = true
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
		return
	}
	resp.Body.Close()
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// AssertError checks the status and the error code of an error envelope
// and returns the envelope.
func (h *TestHarness) AssertError(t *testing.T, resp *http.Response, status int, code string) *model.ErrorEnvelope {
	t.Helper()
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	h.AssertJSON(t, resp, status, &body)
	if body.Error == nil {
		t.Fatalf("response has no error envelope")
	}
	if body.Error.Code != code {
		t.Errorf("error code = %q, want %q", body.Error.Code, code)
	}
	return body.Error
}

// --- Default test claims ---

// EditorClaims returns TestClaims for a user who may edit collections and
// files.
func EditorClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-editor",
		Email:     "editor@acme.example.com",
		Roles:     []string{"editor"},
	}
}

// ViewerClaims returns TestClaims for a read-only user.
func ViewerClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-viewer",
		Email:     "viewer@acme.example.com",
		Roles:     []string{"viewer"},
	}
}

// AdminClaims returns TestClaims for a user granted everything by the
// admin claim.
func AdminClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-admin",
		Email:     "root@acme.example.com",
		Extra:     map[string]any{"admin": true},
	}
}

// DeniedClaims returns TestClaims for a user the deny filter rejects.
func DeniedClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-ned",
		Email:     "ned.flanders@springfield.example.com",
		Roles:     []string{"editor"},
	}
}

// --- Helpers ---

// testdataDir returns the absolute path to the testdata directory.
func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
