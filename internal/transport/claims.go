package transport

import (
	"maps"
	"net/http"
	"strings"

	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/model"
)

// Where the request context fields are read from unless identity.claim_paths
// says otherwise.
var defaultClaimPaths = map[string]string{
	"subject_id": "sub",
	"email":      "email",
	"roles":      "roles",
}

// lookupClaim follows a dotted path such as "realm_access.roles" through
// nested claim objects.
func lookupClaim(claims map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var v any = claims
	for _, key := range strings.Split(path, ".") {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}

func claimString(claims map[string]any, path string) string {
	s, _ := lookupClaim(claims, path).(string)
	return s
}

// claimStrings reads a string array, dropping non-string members, or a
// space separated string such as an OAuth scope.
func claimStrings(claims map[string]any, path string) []string {
	switch v := lookupClaim(claims, path).(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// BuildRequestContextMiddleware turns verified claims into the
// model.RequestContext handlers work with. overrides replaces entries of
// defaultClaimPaths; blank values are ignored. A token without a subject is
// rejected with 401.
func BuildRequestContextMiddleware(overrides map[string]string) func(http.Handler) http.Handler {
	paths := maps.Clone(defaultClaimPaths)
	for k, v := range overrides {
		if v != "" {
			paths[k] = v
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := ClaimsFrom(ctx)
			rctx := &model.RequestContext{
				SubjectID:     claimString(claims, paths["subject_id"]),
				Email:         claimString(claims, paths["email"]),
				Roles:         claimStrings(claims, paths["roles"]),
				Claims:        claims,
				CorrelationID: CorrelationIDFrom(ctx),
				TraceID:       observability.TraceIDFromContext(ctx),
				Locale:        r.URL.Query().Get("locale"),
			}
			if rctx.Validate() != nil {
				WriteError(w, model.NewUnauthorizedError("Token has no subject"))
				return
			}
			next.ServeHTTP(w, r.WithContext(model.WithRequestContext(ctx, rctx)))
		})
	}
}
