package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/config"
)

type fixedSessions int

func (f fixedSessions) Len() int { return int(f) }

func TestHealthHandler_Health(t *testing.T) {
	t.Run("without registry", func(t *testing.T) {
		handler := NewHealthHandler(&config.Config{}, nil, zap.NewNop())
		rec := httptest.NewRecorder()

		handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var response HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "ok", response.Status)
		assert.Zero(t, response.Sessions)
	})

	t.Run("reports open sessions", func(t *testing.T) {
		handler := NewHealthHandler(&config.Config{}, fixedSessions(3), zap.NewNop())
		rec := httptest.NewRecorder()

		handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var response HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 3, response.Sessions)
	})
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "test"}
	mux := http.NewServeMux()
	NewHealthHandler(cfg, nil, zap.NewNop()).RegisterRoutes(mux)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.2.3", response.Version)
	assert.Equal(t, "trace-dashboard", response.Service)
	assert.Equal(t, "test", response.Environment)
	assert.NotEmpty(t, response.GoVersion)
	assert.NotEmpty(t, response.Hostname)
}
