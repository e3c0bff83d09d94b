package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpesa-console/internal/config"
	"github.com/mpesa-console/internal/handlers"
	"github.com/mpesa-console/internal/middleware"
)

func newTestServer(allowed []string) *Server {
	cfg := &config.Config{
		ServerPort:     "0",
		AdminSecret:    "s3cret",
		AdminIPs:       allowed,
		MaxRequestSize: 1 << 10,
	}
	h := handlers.NewHandler(handlers.Deps{Checks: map[string]func(context.Context) error{
		"database": func(context.Context) error { return nil },
	}})
	return NewServer(cfg, h)
}

func TestHealthIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/applications", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRespectAllowlist(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/applications", nil)
	req.Header.Set(middleware.AdminTokenHeader, "s3cret")
	req.RemoteAddr = "203.0.113.9:1234"

	rec := httptest.NewRecorder()
	newTestServer([]string{"10.0.0.0/8"}).Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(middleware.AdminTokenHeader, "s3cret")

	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
