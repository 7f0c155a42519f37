// Package handlers memoizes loaded route handlers per execution context.
package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/searchktools/fastry/core/script"
)

// IDSeparator joins source location and symbol in a handler id
const IDSeparator = "::"

var ErrInvalidID = errors.New("invalid handler id")

// Loader loads symbol from the source at location
type Loader interface {
	Load(source, symbol string) (*script.Handler, error)
}

type key struct {
	source string
	symbol string
}

// Cache maps handler ids to loaded handlers. Entries are never evicted and a
// failed load leaves no entry behind.
//
// A Cache belongs to one execution context and is not safe for concurrent use.
type Cache struct {
	loader  Loader
	entries map[key]*script.Handler
}

// NewCache creates an empty cache backed by loader
func NewCache(loader Loader) *Cache {
	return &Cache{
		loader:  loader,
		entries: make(map[key]*script.Handler),
	}
}

// ParseID splits "<source>::<symbol>"
func ParseID(id string) (source, symbol string, err error) {
	source, symbol, ok := strings.Cut(id, IDSeparator)
	if !ok || source == "" || symbol == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return source, symbol, nil
}

// GetOrLoad returns the cached handler for id, loading it on first use
func (c *Cache) GetOrLoad(id string) (*script.Handler, error) {
	source, symbol, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	k := key{source: source, symbol: symbol}
	if h, ok := c.entries[k]; ok {
		return h, nil
	}

	h, err := c.loader.Load(source, symbol)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	c.entries[k] = h
	return h, nil
}

// Len returns the number of cached handlers
func (c *Cache) Len() int {
	return len(c.entries)
}
