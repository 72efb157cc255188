package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitabwire/cmsadmin/model"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorEnvelope {
	t.Helper()
	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"path": "products/images"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	var body map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["path"] != "products/images" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteJSON_nilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusNoContent, nil)
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"envelope", model.NewNotFoundError(`collection "orders" not found`), 404, model.ErrNotFound, `collection "orders" not found`},
		{"wrapped envelope", fmt.Errorf("open session: %w", model.NewInvalidTransitionError("busy")), 409, model.ErrInvalidTransition, "busy"},
		{"plain error hides its text", errors.New("dial tcp 10.0.0.7:6379"), 500, model.ErrInternalError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, rec)
			if env.Code != tt.wantCode || env.Message != tt.wantMsg {
				t.Errorf("envelope = %+v, want %s %q", env, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestWriteError_traceID(t *testing.T) {
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	ee := model.NewForbiddenError("denied")

	rec := httptest.NewRecorder()
	writeError(rec, ee, traceID)

	if got := decodeEnvelope(t, rec).TraceID; got != traceID {
		t.Errorf("trace_id = %q, want %q", got, traceID)
	}
	if ee.TraceID != "" {
		t.Error("writeError must not modify the caller's envelope")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]int{
		model.ErrBadRequest:         400,
		model.ErrUnauthorized:       401,
		model.ErrForbidden:          403,
		model.ErrNotFound:           404,
		model.ErrValidationError:    422,
		model.ErrInvalidTransition:  409,
		model.ErrPayloadTooLarge:    413,
		model.ErrInternalError:      500,
		model.ErrBackendUnavailable: 503,
		"SOMETHING_NEW":             500,
	}
	for code, want := range tests {
		if got := httpStatus(code); got != want {
			t.Errorf("httpStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestWriteNotFoundAndForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNotFound(rec, "route not found")
	if rec.Code != http.StatusNotFound {
		t.Errorf("WriteNotFound status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	WriteForbidden(rec, "missing capability storage.write")
	if env := decodeEnvelope(t, rec); rec.Code != http.StatusForbidden || env.Code != model.ErrForbidden {
		t.Errorf("WriteForbidden = %d %+v", rec.Code, env)
	}
}
