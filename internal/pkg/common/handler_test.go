package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *HealthHandler) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return w
}

func TestHealthz(t *testing.T) {
	h := &HealthHandler{checks: map[string]func(ctx context.Context) error{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	}}

	w := serve(h)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Healthy bool              `json:"healthy"`
		Checks  map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Healthy)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, body.Checks)
}

func TestHealthz_Unhealthy(t *testing.T) {
	h := &HealthHandler{checks: map[string]func(ctx context.Context) error{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}}

	w := serve(h)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestHealthz_NoDependencies(t *testing.T) {
	w := serve(NewHealthHandler(nil, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
