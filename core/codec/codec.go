// Package codec encodes and decodes route tables.
package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/searchktools/fastry/core/router"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec converts a route table to and from bytes
type Codec interface {
	// Encode encodes routes in registration order
	Encode(routes []router.Route) ([]byte, error)

	// Decode decodes a route table
	Decode(data []byte) ([]router.Route, error)

	// Name returns the codec name
	Name() string

	// ContentType returns the media type of encoded data
	ContentType() string
}

// Codec names
const (
	NameJSON     = "json"
	NameYAML     = "yaml"
	NameProtobuf = "protobuf"
	NameOpenAPI  = "openapi"
)

// manifest is the document shape shared by the JSON and YAML codecs
type manifest struct {
	Routes []router.Route `json:"routes" yaml:"routes"`
}

// Names lists the supported codecs
func Names() []string {
	return []string{NameJSON, NameYAML, NameProtobuf, NameOpenAPI}
}

// Get returns a codec by name
func Get(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case NameJSON:
		return &JSONCodec{}, nil
	case NameYAML, "yml":
		return &YAMLCodec{}, nil
	case NameProtobuf, "proto", "pb":
		return &ProtobufCodec{}, nil
	case NameOpenAPI:
		return &OpenAPICodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
	}
}

// ForFile picks a codec from the file name. "*.openapi.json" and
// "*.openapi.yaml" select the OpenAPI codec.
func ForFile(path string) (Codec, error) {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	if strings.HasSuffix(strings.TrimSuffix(base, ext), ".openapi") {
		return &OpenAPICodec{}, nil
	}

	switch ext {
	case ".json":
		return &JSONCodec{}, nil
	case ".yaml", ".yml":
		return &YAMLCodec{}, nil
	case ".pb", ".binpb":
		return &ProtobufCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: file extension %q", ErrUnsupportedCodec, ext)
	}
}

func validate(routes []router.Route) error {
	for i, r := range routes {
		if r.Pattern == "" || r.HandlerID == "" {
			return fmt.Errorf("route %d: pattern and handler id are required", i)
		}
	}
	return nil
}
