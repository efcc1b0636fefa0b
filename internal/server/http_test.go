package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("generates request ID when missing", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/health", "")

		got := rec.Header().Get("X-Request-ID")
		// UUID format (8-4-4-4-12 hex digits)
		assert.Len(t, got, 36)
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/health", "", "X-Request-ID", "my-custom-id")

		assert.Equal(t, "my-custom-id", rec.Header().Get("X-Request-ID"))
	})
}

func TestServerWithMasterKeyAndMetrics(t *testing.T) {
	env := newTestEnv(t, &Config{
		MasterKey:       "secret",
		MetricsEnabled:  true,
		MetricsEndpoint: "/internal/../metrics",
	})

	t.Run("metrics endpoint is public even when master key is set", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "# HELP")
	})

	t.Run("health endpoint is public even when master key is set", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("API endpoints require auth when master key is set", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/load-keys", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "authentication_error")
	})

	t.Run("API endpoints accessible with valid auth", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/load-keys", "", "Authorization", "Bearer secret")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	env := newTestEnv(t, &Config{MetricsEnabled: false})

	rec := env.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigurableBodySizeLimit(t *testing.T) {
	t.Run("default limit accepts ordinary bodies", func(t *testing.T) {
		env := newTestEnv(t, nil)
		body := `{"openai":"` + strings.Repeat("k", 2048) + `"}`
		rec := env.do(http.MethodPost, "/api/save-keys", body)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom limit rejects larger bodies", func(t *testing.T) {
		env := newTestEnv(t, &Config{BodySizeLimit: "1K"})
		body := `{"openai":"` + strings.Repeat("k", 2048) + `"}`
		rec := env.do(http.MethodPost, "/api/save-keys", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	t.Run("allows every origin by default", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(http.MethodGet, "/api/", "", "Origin", "http://localhost:3000")
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricts to configured origins", func(t *testing.T) {
		env := newTestEnv(t, &Config{CORSOrigins: []string{"https://chat.example.com"}})

		rec := env.do(http.MethodGet, "/api/", "", "Origin", "https://chat.example.com")
		assert.Equal(t, "https://chat.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

		rec = env.do(http.MethodGet, "/api/", "", "Origin", "https://evil.example.com")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight passes auth", func(t *testing.T) {
		env := newTestEnv(t, &Config{MasterKey: "secret"})
		req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		env.srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
