package model

import (
	"context"
	"errors"
	"testing"
)

func TestRequestContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		wantErr error
	}{
		{"subject", "user-1", nil},
		{"empty", "", ErrNoSubject},
		{"blank", "  ", ErrNoSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &RequestContext{SubjectID: tt.subject, Email: "a@b.c"}
			if err := rc.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestContext_NormalizedEmail(t *testing.T) {
	rc := &RequestContext{Email: " Ned.Flanders@Springfield.example.com "}
	if got, want := rc.NormalizedEmail(), "ned.flanders@springfield.example.com"; got != want {
		t.Errorf("NormalizedEmail() = %q, want %q", got, want)
	}
}

func TestRequestContext_Claim(t *testing.T) {
	rc := &RequestContext{Claims: map[string]any{"admin": true}}
	if got := rc.Claim("admin"); got != true {
		t.Errorf("Claim(admin) = %v, want true", got)
	}
	if got := rc.Claim("missing"); got != nil {
		t.Errorf("Claim(missing) = %v, want nil", got)
	}
	if got := (&RequestContext{}).Claim("admin"); got != nil {
		t.Errorf("Claim on nil claims = %v, want nil", got)
	}
}

func TestSubjectFrom(t *testing.T) {
	if got := SubjectFrom(context.Background()); got != "" {
		t.Errorf("SubjectFrom(empty) = %q, want empty", got)
	}

	rctx := &RequestContext{SubjectID: "user-1"}
	ctx := WithRequestContext(context.Background(), rctx)
	if got := RequestContextFrom(ctx); got != rctx {
		t.Errorf("RequestContextFrom() = %p, want %p", got, rctx)
	}
	if got := SubjectFrom(ctx); got != "user-1" {
		t.Errorf("SubjectFrom() = %q, want user-1", got)
	}
}
