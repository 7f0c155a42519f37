package codec

import (
	"github.com/searchktools/fastry/core/router"
	"gopkg.in/yaml.v3"
)

// YAMLCodec implements YAML encoding/decoding
type YAMLCodec struct{}

func (c *YAMLCodec) Encode(routes []router.Route) ([]byte, error) {
	return yaml.Marshal(manifest{Routes: nonNil(routes)})
}

func (c *YAMLCodec) Decode(data []byte) ([]router.Route, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m.Routes, validate(m.Routes)
}

func (c *YAMLCodec) Name() string {
	return NameYAML
}

func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}
