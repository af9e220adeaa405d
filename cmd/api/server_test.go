package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"finsync/internal/shared/config"
)

func TestNewServerConfigFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = "8443"
	cfg.TLS.Enabled = true
	cfg.TLS.RedirectHTTP = true

	scfg := NewServerConfigFromConfig(http.NotFoundHandler(), cfg)
	assert.Equal(t, "0.0.0.0:8443", scfg.Addr)
	assert.True(t, scfg.TLSEnabled)
	assert.True(t, scfg.RedirectHTTP)
}

func TestRedirectServer(t *testing.T) {
	srv := createRedirectServer([]string{"api.finsync.dev"})

	tests := []struct {
		name         string
		host         string
		wantStatus   int
		wantLocation string
	}{
		{name: "allowed host", host: "api.finsync.dev:80", wantStatus: http.StatusMovedPermanently, wantLocation: "https://api.finsync.dev/api/sync?x=1"},
		{name: "unknown host", host: "evil.example", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sync?x=1", nil)
			req.Host = tt.host
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
		})
	}
}
