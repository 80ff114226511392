package middleware

import (
	"net/http"
)

// AdminKeyAuth creates middleware requiring the admin key. With an empty
// admin key every request is refused.
func AdminKeyAuth(adminKey, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, http.StatusForbidden, "Admin access is disabled.")
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeError(w, http.StatusUnauthorized, "Admin key is required.")
				return
			}

			// CRITICAL: constant-time comparison
			if !constantTimeEquals(adminKey, providedKey) {
				writeError(w, http.StatusForbidden, "Admin access required.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
