package codec

import (
	"encoding/json"

	"github.com/searchktools/fastry/core/router"
)

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(routes []router.Route) ([]byte, error) {
	return json.MarshalIndent(manifest{Routes: nonNil(routes)}, "", "  ")
}

func (c *JSONCodec) Decode(data []byte) ([]router.Route, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m.Routes, validate(m.Routes)
}

func (c *JSONCodec) Name() string {
	return NameJSON
}

func (c *JSONCodec) ContentType() string {
	return "application/json"
}

func nonNil(routes []router.Route) []router.Route {
	if routes == nil {
		return []router.Route{}
	}
	return routes
}
