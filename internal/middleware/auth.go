package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/photoexchange/server/internal/models"
)

type contextKey string

const (
	UserHandleContextKey contextKey = "userHandle"

	// UserHandleHeader carries the caller's external user handle
	UserHandleHeader = "X-User-Handle"
)

// GetUserHandleFromContext retrieves the caller's handle from request context
func GetUserHandleFromContext(ctx context.Context) string {
	if handle, ok := ctx.Value(UserHandleContextKey).(string); ok {
		return handle
	}
	return ""
}

// APIKeyAuth creates middleware for shared API key authentication
func APIKeyAuth(apiKey, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health endpoints
			path := r.URL.Path
			if path == "/health" || path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			// Only authenticate API routes
			if !strings.HasPrefix(path, "/api") {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeError(w, http.StatusUnauthorized, "API key is required.")
				return
			}

			if !constantTimeEquals(apiKey, providedKey) {
				writeError(w, http.StatusUnauthorized, "Invalid API key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUserHandle creates middleware that rejects requests without a user
// handle and stores the handle in the request context
func RequireUserHandle() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := strings.TrimSpace(r.Header.Get(UserHandleHeader))
			if handle == "" {
				writeError(w, http.StatusBadRequest, UserHandleHeader+" header is required.")
				return
			}

			ctx := context.WithValue(r.Context(), UserHandleContextKey, handle)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// constantTimeEquals performs a constant-time string comparison
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
