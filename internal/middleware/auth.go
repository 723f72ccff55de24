package middleware

import (
	"net/http"
	"strings"

	"github.com/gallery/service/internal/auth"
	"github.com/gallery/service/internal/response"
)

// RequireAuth returns middleware that validates a Bearer token and injects
// its claims into the request context.
func RequireAuth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := v.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				response.Err(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid Bearer token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				if claims, err := v.Verify(strings.TrimSpace(parts[1])); err == nil {
					r = r.WithContext(auth.WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
