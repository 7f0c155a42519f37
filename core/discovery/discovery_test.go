package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/searchktools/fastry/core/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan(t *testing.T) {
	src := `
-->r /home
function home(app, request)
  return { code = 200, type = "text/plain", body = "home" }
end

local function helper() end

  -->r   /users/<id>

function show_user(app, request)
end
`
	routes, err := Scan("app.lua", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []router.Route{
		{Pattern: "/home", HandlerID: "app.lua::home"},
		{Pattern: "/users/<id>", HandlerID: "app.lua::show_user"},
	}, routes)
}

func TestScanErrors(t *testing.T) {
	_, err := Scan("a.lua", strings.NewReader("-->r /a\nlocal x = 1\n"))
	assert.ErrorIs(t, err, ErrMissingFunction)
	assert.Contains(t, err.Error(), "a.lua:1")

	_, err = Scan("b.lua", strings.NewReader("\n\n-->r /b\n"))
	assert.ErrorIs(t, err, ErrMissingFunction)
	assert.Contains(t, err.Error(), "b.lua:3")

	_, err = Scan("c.lua", strings.NewReader("-->r /c\n-->r /d\nfunction d() end\n"))
	assert.ErrorIs(t, err, ErrMissingFunction)

	_, err = Scan("d.lua", strings.NewReader("-->r home\nfunction home() end\n"))
	assert.ErrorIs(t, err, ErrMissingPattern)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.lua", "-->r /b\nfunction b() end\n")
	writeFile(t, root, "a/nested.lua", "-->r /a/<x>\nfunction nested() end\n-->r /a\nfunction top() end\n")
	writeFile(t, root, "vendor/lib.lua", "-->r /vendored\nfunction v() end\n")
	writeFile(t, root, "deep/node_modules/x.lua", "-->r /nm\nfunction nm() end\n")
	writeFile(t, root, "notes.txt", "-->r /txt\nfunction txt() end\n")

	routes, err := Discover(root)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "nested.lua")
	assert.Equal(t, []router.Route{
		{Pattern: "/a/<x>", HandlerID: nested + "::nested"},
		{Pattern: "/a", HandlerID: nested + "::top"},
		{Pattern: "/b", HandlerID: filepath.Join(root, "b.lua") + "::b"},
	}, routes)
}

func TestDiscoverEmpty(t *testing.T) {
	routes, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, routes)
}
