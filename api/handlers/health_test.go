package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleHealthz(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHandleReady(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		h := NewHealthHandler(zap.NewNop(),
			HealthCheck{Name: "database", Ping: func(context.Context) error { return nil }},
			HealthCheck{Name: "redis", Ping: func(context.Context) error { return nil }},
		)

		rec := httptest.NewRecorder()
		h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database"`)
		assert.Contains(t, rec.Body.String(), `"redis"`)
	})

	t.Run("failing check flips to unhealthy", func(t *testing.T) {
		h := NewHealthHandler(zap.NewNop(),
			HealthCheck{Name: "database", Ping: func(context.Context) error { return nil }},
		)
		h.RegisterCheck(HealthCheck{
			Name: "redis",
			Ping: func(context.Context) error { return errors.New("connection refused") },
		})

		rec := httptest.NewRecorder()
		h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}
