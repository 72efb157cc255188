package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/blob"
	"github.com/pitabwire/cmsadmin/internal/catalog"
	"github.com/pitabwire/cmsadmin/internal/config"
	"github.com/pitabwire/cmsadmin/internal/form"
	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/model"
)

// Recorder receives the domain metrics emitted by handlers.
// *observability.Metrics implements it.
type Recorder interface {
	RecordFormSubmission(mode string, err error)
	RecordFormValidationFailure(rule string)
	SetFormSessionsOpen(n int)
	RecordEntityValidation(collectionID string, valid bool)
	RecordStorageOperation(operation string, duration time.Duration, err error)
	RecordUpload(bytes int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordFormSubmission(string, error)                  {}
func (nopRecorder) RecordFormValidationFailure(string)                  {}
func (nopRecorder) SetFormSessionsOpen(int)                             {}
func (nopRecorder) RecordEntityValidation(string, bool)                 {}
func (nopRecorder) RecordStorageOperation(string, time.Duration, error) {}
func (nopRecorder) RecordUpload(int64)                                  {}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config             *config.Config
	Logger             *zap.Logger
	Metrics            *observability.Metrics
	Authenticate       func(http.Handler) http.Handler
	CapabilityResolver model.CapabilityResolver
	Readiness          observability.ReadinessChecks

	Catalog  *catalog.Registry
	Sessions *form.Sessions

	// Storage and Files are nil when file storage is disabled.
	Storage blob.Store
	Files   FileOpener
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, metrics, and signed file
// downloads bypass the authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var rec Recorder = nopRecorder{}
	if deps.Metrics != nil {
		rec = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, metricsPath(deps.Config), observability.Handler())
	}
	if deps.Files != nil {
		r.Get("/files/*", handleFiles(deps.Files, logger))
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContextMiddleware(deps.Config.Identity.ClaimPaths))
		r.Use(ResolveCapabilities(deps.CapabilityResolver, logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Get("/locales", handleLocales(deps.Config.Locales))

		if deps.Catalog != nil {
			r.Route("/collections", func(r chi.Router) {
				r.Use(RequireCapability(model.CapCollectionsRead))
				r.Get("/", handleListCollections(deps.Catalog))
				r.Get("/{collectionId}", handleGetCollection(deps.Catalog))
				r.Post("/{collectionId}/validate", handleValidateEntity(deps.Catalog, rec, logger))
			})
		}

		if deps.Sessions != nil {
			r.Route("/forms/sessions", func(r chi.Router) {
				r.Use(RequireCapability(model.CapCollectionsWrite))
				r.Post("/", handleOpenSession(deps.Sessions, rec, logger))
				r.Get("/{sessionId}", handleGetSession(deps.Sessions))
				r.Post("/{sessionId}/changes", handleSessionChange(deps.Sessions))
				r.Post("/{sessionId}/submit", handleSubmitSession(deps.Sessions, rec, logger))
				r.Post("/{sessionId}/reset", handleResetSession(deps.Sessions))
				r.Delete("/{sessionId}", handleCloseSession(deps.Sessions, rec))
			})
		}

		if deps.Storage != nil {
			r.Route("/storage", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(RequireCapability(model.CapStorageRead))
					r.Get("/", handleListStorage(deps.Storage, rec))
					r.Get("/url", handleDownloadURL(deps.Storage, rec))
				})
				r.Group(func(r chi.Router) {
					r.Use(RequireCapability(model.CapStorageWrite))
					r.Post("/upload", handleUpload(deps.Storage, rec, logger))
					r.Post("/folders", handleCreateFolder(deps.Storage, rec))
					r.Delete("/", handleDeleteStorage(deps.Storage, rec))
				})
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: model.NewBadRequestError("method not allowed")})
	})

	return r
}

func metricsPath(cfg *config.Config) string {
	if p := cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}
