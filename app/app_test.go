package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/searchktools/fastry/config"
	"github.com/searchktools/fastry/core/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadRoutesFromManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "routes.yaml")
	writeFile(t, manifest, `
routes:
  - pattern: /ping
    handler_id: handlers/ping.lua::ping
`)

	cfg := config.Default()
	cfg.RoutesFile = manifest
	routes, err := LoadRoutes(cfg)
	require.NoError(t, err)
	assert.Equal(t, []router.Route{{Pattern: "/ping", HandlerID: "handlers/ping.lua::ping"}}, routes)
}

func TestLoadRoutesDiscovers(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "ping.lua")
	writeFile(t, source, "-->r /ping\nfunction ping(app, request)\nend\n")

	cfg := config.Default()
	cfg.ProjectDir = dir
	routes, err := LoadRoutes(cfg)
	require.NoError(t, err)
	assert.Equal(t, []router.Route{{Pattern: "/ping", HandlerID: source + "::ping"}}, routes)
}

func TestOpenStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := OpenStore(context.Background(), config.StoreConfig{
		Backend:     config.StoreRedis,
		RedisAddr:   mr.Addr(),
		RedisPrefix: "t:",
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	got, err := mr.Get("t:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = ""
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewFailsOnInitScriptError(t *testing.T) {
	dir := t.TempDir()
	initScript := filepath.Join(dir, "init.lua")
	writeFile(t, initScript, "error('cannot start')\n")

	cfg := config.Default()
	cfg.ProjectDir = dir
	cfg.InitScript = initScript
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ping.lua"), "-->r /ping\nfunction ping(app, request)\n  return { code = 200, type = 'text/plain', body = 'pong' }\nend\n")

	cfg := config.Default()
	cfg.ProjectDir = dir
	cfg.Addr = "127.0.0.1:0"
	cfg.AdminAddr = "127.0.0.1:0"
	cfg.InitialPoolSize = 2

	ctx, cancel := context.WithCancel(context.Background())
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, a.Routes(), 1)
	assert.Equal(t, 2, a.Engine().Stats().Pool.NumWorkers)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Zero(t, a.Engine().Stats().Pool.NumWorkers)
}
