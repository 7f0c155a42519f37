// Package discovery finds route declarations in a project's Lua sources.
//
// A route is declared by a comment line containing the marker "-->r"
// followed by the route pattern, immediately above the handler function:
//
//	-->r /users/<id>
//	function show_user(app, request)
//	  ...
//	end
package discovery

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/searchktools/fastry/core/handlers"
	"github.com/searchktools/fastry/core/router"
)

// Marker introduces a route declaration
const Marker = "-->r"

// Pattern selects the files scanned for declarations
const Pattern = "**/*.lua"

var (
	ErrMissingFunction = errors.New("route marker is not followed by a function declaration")
	ErrMissingPattern  = errors.New("route marker has no pattern")
)

// skipped directory names, wherever they appear in the tree
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"vendor":       true,
	"venv":         true,
}

var functionDecl = regexp.MustCompile(`^\s*function\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// Discover scans every Lua file under dir and returns the declared routes,
// ordered by file path and then by line.
func Discover(dir string) ([]router.Route, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(matches)

	var routes []router.Route
	for _, match := range matches {
		if skipped(match) {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(match))
		found, err := scanPath(path)
		if err != nil {
			return nil, err
		}
		routes = append(routes, found...)
	}
	return routes, nil
}

func skipped(match string) bool {
	parts := strings.Split(match, "/")
	for _, dir := range parts[:len(parts)-1] {
		if skipDirs[dir] {
			return true
		}
	}
	return false
}

func scanPath(path string) ([]router.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Scan(path, f)
}

// Scan reads declarations from r. source is used for handler ids and error
// positions.
func Scan(source string, r io.Reader) ([]router.Route, error) {
	var (
		routes  []router.Route
		pending string
		at      int
		line    int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		text := scanner.Text()

		if idx := strings.Index(text, Marker); idx >= 0 {
			if pending != "" {
				return nil, fmt.Errorf("%s:%d: %w", source, at, ErrMissingFunction)
			}
			rest := text[idx+len(Marker):]
			slash := strings.IndexByte(rest, '/')
			if slash < 0 {
				return nil, fmt.Errorf("%s:%d: %w", source, line, ErrMissingPattern)
			}
			pending, at = strings.TrimSpace(rest[slash:]), line
			continue
		}

		if pending == "" || strings.TrimSpace(text) == "" {
			continue
		}

		m := functionDecl.FindStringSubmatch(text)
		if m == nil {
			return nil, fmt.Errorf("%s:%d: %w", source, at, ErrMissingFunction)
		}
		routes = append(routes, router.Route{
			Pattern:   pending,
			HandlerID: source + handlers.IDSeparator + m[1],
		})
		pending = ""
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	if pending != "" {
		return nil, fmt.Errorf("%s:%d: %w", source, at, ErrMissingFunction)
	}
	return routes, nil
}
