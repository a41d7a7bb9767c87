package middleware

import (
	"net/http"

	"github.com/microtasks/backend/internal/models"
)

// RequireRole lets the request through only when the session set by
// SessionAuth holds one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromCtx(r.Context())
			if sess == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if !sess.HasRole(roles...) {
				http.Error(w, `{"error":"your role cannot access this resource"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
