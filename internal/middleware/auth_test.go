package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handle", GetUserHandleFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth("secret", "X-API-Key")(okHandler())

	tests := []struct {
		name     string
		path     string
		key      string
		expected int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"non api path is public", "/swagger/index.html", "", http.StatusOK},
		{"missing key", "/api/gallery", "", http.StatusUnauthorized},
		{"wrong key", "/api/gallery", "nope", http.StatusUnauthorized},
		{"valid key", "/api/gallery", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestRequireUserHandle(t *testing.T) {
	handler := RequireUserHandle()(okHandler())

	t.Run("rejects missing handle", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/photos", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), UserHandleHeader)
	})

	t.Run("stores trimmed handle in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/photos", nil)
		req.Header.Set(UserHandleHeader, "  alice ")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Header().Get("X-Handle"))
	})
}

func TestAdminKeyAuth(t *testing.T) {
	t.Run("disabled without key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/lifecycle/run", nil)
		req.Header.Set("X-Admin-Key", "")
		rec := httptest.NewRecorder()

		AdminKeyAuth("", "X-Admin-Key")(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("checks key", func(t *testing.T) {
		handler := AdminKeyAuth("admin", "X-Admin-Key")(okHandler())

		for key, expected := range map[string]int{
			"":      http.StatusUnauthorized,
			"wrong": http.StatusForbidden,
			"admin": http.StatusOK,
		} {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/lifecycle", nil)
			req.Header.Set("X-Admin-Key", key)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, expected, rec.Code, "key %q", key)
		}
	})
}
