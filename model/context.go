package model

import (
	"context"
	"errors"
	"strings"
)

// RequestContext is the authenticated editor behind a request, plus the
// correlation and locale data handlers log with. The authentication
// middleware builds it once per request; nothing mutates it afterwards.
type RequestContext struct {
	SubjectID     string
	Email         string
	Roles         []string
	Claims        map[string]any
	CorrelationID string
	TraceID       string
	Locale        string
}

// ErrNoSubject reports an identity that names no subject.
var ErrNoSubject = errors.New("request context has no subject")

// Validate returns ErrNoSubject when the subject is blank.
func (rc *RequestContext) Validate() error {
	if strings.TrimSpace(rc.SubjectID) == "" {
		return ErrNoSubject
	}
	return nil
}

// NormalizedEmail returns the email trimmed and lowercased for policy
// matching.
func (rc *RequestContext) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(rc.Email))
}

// Claim returns the raw token claim stored under key, or nil.
func (rc *RequestContext) Claim(key string) any {
	return rc.Claims[key]
}

type requestContextKey struct{}

// WithRequestContext attaches rctx to ctx.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rctx)
}

// RequestContextFrom returns the RequestContext attached to ctx, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rctx
}

// SubjectFrom returns the subject of the editor behind ctx. Unauthenticated
// contexts yield "".
func SubjectFrom(ctx context.Context) string {
	if rctx := RequestContextFrom(ctx); rctx != nil {
		return rctx.SubjectID
	}
	return ""
}
