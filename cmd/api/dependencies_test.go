package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/invoice-import/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSecond: 50,
			RateLimitBurst:     50,
			AllowedOrigins:     []string{"http://localhost:3000"},
		},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Cache:   config.CacheConfig{Type: "memory", TTL: time.Minute},
		Import: config.ImportConfig{
			MaxUploadBytes:  1 << 20,
			PreviewRows:     5,
			CleanupSpec:     "@every 1h",
			DefaultCurrency: "EUR",
		},
	}
}

func TestInitDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := InitDependencies(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	t.Cleanup(deps.Cleanup)

	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.MappingRepo)
	assert.NotNil(t, deps.ImportService)
	assert.NotNil(t, deps.Scheduler)

	srv := httptest.NewServer(deps.Router())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/import", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestInitDependenciesUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Type = "redis"
	cfg.Cache.RedisAddress = "127.0.0.1:1"

	_, err := InitDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "failed to init infrastructure")
}
