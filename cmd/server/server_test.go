package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/api"
	"github.com/martinsuchenak/invd/internal/config"
	"github.com/martinsuchenak/invd/internal/mcp"
	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/metrics"
	"github.com/martinsuchenak/invd/internal/storage"
)

func newServerConfig(t *testing.T, cfg *config.Config) *ServerConfig {
	t.Helper()
	store, err := storage.NewStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	classes := metadata.Default()
	return &ServerConfig{
		Config:     cfg,
		Store:      store,
		Classes:    classes,
		MCPServer:  mcp.NewServer(store, classes, nil, cfg.MCPAuthToken),
		APIHandler: api.NewHandler(store, classes, nil),
	}
}

func get(t *testing.T, srv *httptest.Server, path, token string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHandlerRoutes(t *testing.T) {
	cfg := &config.Config{ListenAddr: ":0", MetricsEnabled: true, APIAuthToken: "secret"}
	srv := httptest.NewServer(Handler(newServerConfig(t, cfg)))
	defer srv.Close()

	status, body := get(t, srv, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	status, _ = get(t, srv, "/api/objects", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = get(t, srv, "/api/objects", "secret")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", body)

	status, body = get(t, srv, "/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "invd_http_requests_total")
}

func TestHandlerCountsRejectedRequests(t *testing.T) {
	cfg := &config.Config{ListenAddr: ":0", MetricsEnabled: true, APIAuthToken: "secret"}
	srv := httptest.NewServer(Handler(newServerConfig(t, cfg)))
	defer srv.Close()

	rejected := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "401")
	before := testutil.ToFloat64(rejected)

	status, _ := get(t, srv, "/api/classes", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, before+1, testutil.ToFloat64(rejected))
}

func TestHandlerWithoutMetrics(t *testing.T) {
	cfg := &config.Config{ListenAddr: ":0"}
	srv := httptest.NewServer(Handler(newServerConfig(t, cfg)))
	defer srv.Close()

	status, _ := get(t, srv, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, srv, "/api/classes", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestLoadClasses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	classes, err := loadClasses(ctx, &config.Config{})
	require.NoError(t, err)
	assert.True(t, classes.Exists("Rack"))

	path := filepath.Join(t.TempDir(), "classes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
classes:
  - name: Site
    possibleChildren: [Shelf]
  - name: Shelf
`), 0o600))
	classes, err = loadClasses(ctx, &config.Config{ClassesFile: path})
	require.NoError(t, err)
	assert.True(t, classes.CanContain("Site", "Shelf"))

	_, err = loadClasses(ctx, &config.Config{ClassesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestNewRunnerUnknownSource(t *testing.T) {
	cfg := &config.Config{SyncSource: "nope", SyncWorkers: 1}
	sc := newServerConfig(t, cfg)
	assert.Nil(t, newRunner(cfg, sc.Store, sc.Classes))
}

func TestNewRunnerFileSource(t *testing.T) {
	cfg := &config.Config{SyncSource: "file", SyncFileDir: t.TempDir(), SyncWorkers: 2}
	sc := newServerConfig(t, cfg)
	runner := newRunner(cfg, sc.Store, sc.Classes)
	require.NotNil(t, runner)
	assert.Equal(t, "file", runner.Source())
}
