package core

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/searchktools/fastry/core/observability"
	"github.com/searchktools/fastry/core/pools"
	"github.com/searchktools/fastry/core/router"
	"github.com/searchktools/fastry/core/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, routes *router.Trie, reg prometheus.Registerer) *RequestProcessor {
	t.Helper()
	rt := script.NewRuntime()
	t.Cleanup(rt.Close)

	clock := newFakeClock()
	p, err := NewRequestProcessor(3, ProcessorConfig{
		Routes:  routes,
		Runtime: rt,
		Monitor: observability.NewMonitor(reg),
		Clock:   clock.Now,
	})
	require.NoError(t, err)
	return p
}

func process(t *testing.T, p *RequestProcessor, raw string) string {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()

	go p.Process(pools.Job{Conn: server, Raw: []byte(raw)})

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(client)
	require.NoError(t, err)
	return string(data)
}

func TestProcessorResponses(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "items.lua")
	require.NoError(t, os.WriteFile(source, []byte(`
function show(app, request)
  return { code = 200, type = "application/json", body = '{"id":"' .. request.path_variables.id .. '","worker":' .. app.worker .. '}' }
end
`), 0o644))

	routes := router.New()
	routes.Register("/items/<id>", source+"::show")
	routes.Register("/gone", filepath.Join(dir, "gone.lua")+"::show")

	reg := prometheus.NewRegistry()
	p := newTestProcessor(t, routes, reg)

	resp := process(t, p, "GET /items/9 HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\nDate: Fri, 01 Mar 2024 12:00:00 GMT\r\nServer: fastry\r\n"), resp)
	assert.Contains(t, resp, "Content-Type: application/json\r\n")
	assert.True(t, strings.HasSuffix(resp, `{"id":"9","worker":3}`), resp)

	resp = process(t, p, "GET /items/10?verbose=1 HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasSuffix(resp, `{"id":"10","worker":3}`), resp)
	assert.Equal(t, 1, p.CachedHandlers())

	resp = process(t, p, "BREW /items/9 HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 400 OK\r\n"), resp)

	resp = process(t, p, "GET /nowhere HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 404 OK\r\n"), resp)
	assert.Contains(t, resp, "Content-Length: 2\r\n")

	resp = process(t, p, "GET /gone HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 500 OK\r\n"), resp)
	assert.Equal(t, 1, p.CachedHandlers())

	count := func(outcome string) float64 {
		return testutil.ToFloat64(p.monitor.RequestsCounter(outcome))
	}
	assert.Equal(t, 2.0, count("ok"))
	assert.Equal(t, 1.0, count("bad_request"))
	assert.Equal(t, 1.0, count("not_found"))
	assert.Equal(t, 1.0, count("load_error"))
}

func TestProcessorClonesRoutes(t *testing.T) {
	routes := router.New()
	p := newTestProcessor(t, routes, prometheus.NewRegistry())

	routes.Register("/late", "late.lua::handler")
	resp := process(t, p, "GET /late HTTP/1.1\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 404 OK\r\n"), resp)
}
