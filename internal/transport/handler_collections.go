package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/catalog"
	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/internal/schema"
	"github.com/pitabwire/cmsadmin/model"
)

const maxEntityBody = 1 << 20

type localesResponse struct {
	Default string         `json:"default"`
	Locales []model.Locale `json:"locales"`
}

type collectionsResponse struct {
	Locale      string                       `json:"locale"`
	Collections []model.CollectionDescriptor `json:"collections"`
}

type entityValidationResponse struct {
	Valid  bool               `json:"valid"`
	Errors []model.FieldError `json:"errors,omitempty"`
}

func handleLocales(locales model.Locales) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, localesResponse{Default: locales.Default(), Locales: locales})
	}
}

// requestLocale returns the locale the request asked for, or the default.
func requestLocale(r *http.Request, locales model.Locales) (string, error) {
	locale := ""
	if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
		locale = rctx.Locale
	}
	if locale != "" && !locales.Has(locale) {
		return "", model.NewBadRequestError(fmt.Sprintf("unsupported locale %q", locale))
	}
	return locales.Resolve(locale), nil
}

func handleListCollections(reg *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale, err := requestLocale(r, reg.Locales())
		if err != nil {
			WriteError(w, err)
			return
		}
		collections := reg.Collections(locale)
		if collections == nil {
			collections = []model.CollectionDescriptor{}
		}
		WriteJSON(w, http.StatusOK, collectionsResponse{Locale: locale, Collections: collections})
	}
}

func handleGetCollection(reg *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale, err := requestLocale(r, reg.Locales())
		if err != nil {
			WriteError(w, err)
			return
		}
		id := chi.URLParam(r, "collectionId")
		desc, ok := reg.Collection(id, locale)
		if !ok {
			WriteNotFound(w, fmt.Sprintf("collection %q not found", id))
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

// handleValidateEntity checks an entity document against a collection. An
// invalid entity is a normal 200 response with valid=false.
func handleValidateEntity(reg *catalog.Registry, rec Recorder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale, err := requestLocale(r, reg.Locales())
		if err != nil {
			WriteError(w, err)
			return
		}
		id := chi.URLParam(r, "collectionId")
		desc, ok := reg.Collection(id, locale)
		if !ok {
			WriteNotFound(w, fmt.Sprintf("collection %q not found", id))
			return
		}

		var entity map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBody)).Decode(&entity); err != nil || entity == nil {
			WriteError(w, model.NewBadRequestError("request body must be a JSON object"))
			return
		}

		ctx, span := observability.StartSpan(r.Context(), "entity.validate",
			observability.AttrCollectionID.String(id),
			observability.AttrLocale.String(locale),
		)
		errs := schema.ValidateEntity(desc, entity)
		span.End()

		rec.RecordEntityValidation(id, len(errs) == 0)
		log := observability.LoggerFrom(ctx, logger)
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("entity validated",
				zap.String("collection_id", id),
				zap.Int("errors", len(errs)),
				zap.Any("entity", observability.RedactBody(entity, nil)),
			)
		}
		WriteJSON(w, http.StatusOK, entityValidationResponse{Valid: len(errs) == 0, Errors: errs})
	}
}
