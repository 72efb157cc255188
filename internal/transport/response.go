// Package transport serves the admin API: the chi router, the middleware
// chain and the collection, form and storage handlers.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/cmsadmin/model"
)

func httpStatus(code string) int {
	switch code {
	case model.ErrBadRequest:
		return http.StatusBadRequest
	case model.ErrUnauthorized:
		return http.StatusUnauthorized
	case model.ErrForbidden:
		return http.StatusForbidden
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrValidationError:
		return http.StatusUnprocessableEntity
	case model.ErrInvalidTransition:
		return http.StatusConflict
	case model.ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrBackendUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error *model.ErrorEnvelope `json:"error"`
}

// WriteJSON encodes body with status. A nil body writes headers only.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError reports err as {"error": envelope}. Errors that do not wrap an
// ErrorEnvelope become INTERNAL_ERROR so their text never reaches clients.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err, "")
}

func writeError(w http.ResponseWriter, err error, traceID string) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}
	WriteJSON(w, httpStatus(ee.Code), errorResponse{Error: ee.WithTraceID(traceID)})
}

func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

func WriteForbidden(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewForbiddenError(msg))
}
