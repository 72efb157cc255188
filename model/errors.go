package model

import (
	"errors"
	"fmt"
)

// Error codes carried by ErrorEnvelope. The transport maps each to one HTTP
// status.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrNotFound           = "NOT_FOUND"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrInvalidTransition  = "INVALID_TRANSITION"
	ErrPayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
)

const (
	msgInternal           = "An unexpected error occurred"
	msgBackendUnavailable = "The storage backend is temporarily unavailable"
)

// ErrorEnvelope is an error that is safe to show to an editor. Handlers
// return it as {"error": {...}}; any other error is reported as
// INTERNAL_ERROR without its text.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithTraceID returns a copy of e stamped with traceID, or e itself when
// traceID is empty or e already has one.
func (e *ErrorEnvelope) WithTraceID(traceID string) *ErrorEnvelope {
	if traceID == "" || e.TraceID != "" {
		return e
	}
	cp := *e
	cp.TraceID = traceID
	return &cp
}

// FieldError names the field and rule behind a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func envelope(code, msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: code, Message: msg}
}

func NewBadRequestError(msg string) *ErrorEnvelope   { return envelope(ErrBadRequest, msg) }
func NewUnauthorizedError(msg string) *ErrorEnvelope { return envelope(ErrUnauthorized, msg) }
func NewForbiddenError(msg string) *ErrorEnvelope    { return envelope(ErrForbidden, msg) }
func NewNotFoundError(msg string) *ErrorEnvelope     { return envelope(ErrNotFound, msg) }

// NewInvalidTransitionError reports an operation the form session cannot
// perform in its current status.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return envelope(ErrInvalidTransition, msg)
}

// NewPayloadTooLargeError reports an upload over the configured limit.
func NewPayloadTooLargeError(msg string) *ErrorEnvelope {
	return envelope(ErrPayloadTooLarge, msg)
}

// NewInternalError hides the cause behind a generic message.
func NewInternalError() *ErrorEnvelope {
	return envelope(ErrInternalError, msgInternal)
}

// NewBackendUnavailableError reports a store that cannot be reached. An
// empty msg uses the generic text.
func NewBackendUnavailableError(msg string) *ErrorEnvelope {
	if msg == "" {
		msg = msgBackendUnavailable
	}
	return envelope(ErrBackendUnavailable, msg)
}

// NewValidationFailure reports one failed rule. The rule's message doubles
// as the envelope message so clients can show it as is.
func NewValidationFailure(field, code, msg string) *ErrorEnvelope {
	e := envelope(ErrValidationError, msg)
	e.Details = []FieldError{{Field: field, Code: code, Message: msg}}
	return e
}

// IsCode reports whether err is, or wraps, an envelope with code.
func IsCode(err error, code string) bool {
	var ee *ErrorEnvelope
	return errors.As(err, &ee) && ee.Code == code
}
