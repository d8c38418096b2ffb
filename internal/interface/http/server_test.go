package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imperium-ai/imperium/internal/interface/http/handlers"
)

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	hc := handlers.NewCompositeHealthChecker("test")
	s := NewServer(DefaultConfig(), Dependencies{HealthChecker: hc})

	rec := serve(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	hc.AddCheck("storage", func(context.Context) error { return errors.New("closed") })
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(s, "/livez").Code)
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("imperium_up 1\n"))
	})

	s := NewServer(DefaultConfig(), Dependencies{Metrics: metrics})
	rec := serve(s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "imperium_up 1\n", rec.Body.String())

	cfg := DefaultConfig()
	cfg.EnableMetrics = false
	assert.Equal(t, http.StatusNotFound, serve(NewServer(cfg, Dependencies{Metrics: metrics}), "/metrics").Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})
	s.router.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(s, "/boom").Code)
}
