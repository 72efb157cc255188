package transport

import (
	"context"
	"crypto"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/cmsadmin/internal/config"
	"github.com/pitabwire/cmsadmin/model"
)

const clockSkew = 30 * time.Second

// KeyFunc looks up the key that verifies tokens signed under kid.
type KeyFunc func(ctx context.Context, kid string) (crypto.PublicKey, error)

var errMissingKID = errors.New("missing kid in token header")

// JWTAuthenticator verifies the Authorization bearer token against keys and
// the configured issuer, audience and algorithms, then stores its claims in
// the request context. Every failure is a 401 with a short reason.
func JWTAuthenticator(cfg config.IdentityConfig, keys KeyFunc) func(http.Handler) http.Handler {
	parser := jwt.NewParser(parserOptions(cfg)...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, reason := bearerToken(r)
			if reason != "" {
				WriteError(w, model.NewUnauthorizedError(reason))
				return
			}

			claims := jwt.MapClaims{}
			_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				kid, _ := t.Header["kid"].(string)
				if kid == "" {
					return nil, errMissingKID
				}
				return keys(r.Context(), kid)
			})
			if err != nil {
				WriteError(w, model.NewUnauthorizedError(rejectionReason(err)))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func parserOptions(cfg config.IdentityConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.Algorithms),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

// bearerToken returns the token or, when there is none, why.
func bearerToken(r *http.Request) (token, reason string) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", "Missing authorization header"
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return "", "Invalid authorization header format"
	}
	return token, ""
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "Invalid token issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "Invalid token audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid) && strings.Contains(err.Error(), "signing method"):
		return "Disallowed signing algorithm"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Invalid token signature"
	case errors.Is(err, errMissingKID), strings.Contains(err.Error(), "signing key"):
		return "Unknown signing key"
	}
	return "Invalid token"
}
