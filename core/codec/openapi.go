package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/searchktools/fastry/core/router"
)

// HandlerExtension is the path item extension carrying the handler id
const HandlerExtension = "x-fastry-handler"

// OrderExtension is the path item extension carrying the registration index
const OrderExtension = "x-fastry-order"

// OpenAPICodec describes the route table as an OpenAPI 3 document. Route
// parameters "<name>" become path templates "{name}". Routes are not bound to
// a method, so each path is documented under GET and the handler id is kept in
// the path item's x-fastry-handler extension.
//
// Paths in an OpenAPI document are unordered, but registration order decides
// which parameter name a shared parameter segment reports. Encode records
// each route's index in x-fastry-order and Decode restores that order. Paths
// without the extension follow the ordered ones, alphabetically.
type OpenAPICodec struct {
	Title   string
	Version string
}

func (c *OpenAPICodec) Encode(routes []router.Route) ([]byte, error) {
	title, version := c.Title, c.Version
	if title == "" {
		title = "fastry routes"
	}
	if version == "" {
		version = "0.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.NewPaths(),
	}

	for i, r := range routes {
		path, params := toTemplate(r.Pattern)

		op := openapi3.NewOperation()
		op.OperationID = r.HandlerID
		op.Summary = r.HandlerID
		op.Responses = openapi3.NewResponses()
		for _, name := range params {
			op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
		}

		item := &openapi3.PathItem{Get: op}
		item.Extensions = map[string]any{
			HandlerExtension: r.HandlerID,
			OrderExtension:   i,
		}
		doc.Paths.Set(path, item)
	}

	return json.MarshalIndent(doc, "", "  ")
}

func (c *OpenAPICodec) Decode(data []byte) ([]router.Route, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	items := doc.Paths.Map()
	paths := make([]string, 0, len(items))
	for path := range items {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	order := make(map[string]int, len(paths))
	for _, path := range paths {
		idx, ok, err := orderIndex(items[path].Extensions[OrderExtension])
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", path, err)
		}
		if ok {
			order[path] = idx
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		a, aok := order[paths[i]]
		b, bok := order[paths[j]]
		if aok && bok {
			return a < b
		}
		return aok && !bok
	})

	routes := make([]router.Route, 0, len(paths))
	for _, path := range paths {
		id, err := handlerID(items[path].Extensions[HandlerExtension])
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", path, err)
		}
		routes = append(routes, router.Route{Pattern: fromTemplate(path), HandlerID: id})
	}
	return routes, validate(routes)
}

func (c *OpenAPICodec) Name() string {
	return NameOpenAPI
}

func (c *OpenAPICodec) ContentType() string {
	return "application/vnd.oai.openapi+json"
}

func handlerID(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case json.RawMessage:
		var id string
		if err := json.Unmarshal(v, &id); err != nil {
			return "", err
		}
		return id, nil
	case nil:
		return "", fmt.Errorf("missing %s", HandlerExtension)
	default:
		return "", fmt.Errorf("%s must be a string, got %T", HandlerExtension, v)
	}
}

func orderIndex(v any) (int, bool, error) {
	switch v := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return int(v), true, nil
	case int:
		return v, true, nil
	case json.RawMessage:
		var idx int
		if err := json.Unmarshal(v, &idx); err != nil {
			return 0, false, fmt.Errorf("%s: %w", OrderExtension, err)
		}
		return idx, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be an integer, got %T", OrderExtension, v)
	}
}

// toTemplate rewrites "/users/<id>" to "/users/{id}"
func toTemplate(pattern string) (string, []string) {
	segments := strings.Split(pattern, "/")
	var params []string
	for i, seg := range segments {
		if !strings.HasPrefix(seg, string(router.ParamMarker)) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(seg, string(router.ParamMarker)), ">")
		segments[i] = "{" + name + "}"
		params = append(params, name)
	}
	return strings.Join(segments, "/"), params
}

// fromTemplate rewrites "/users/{id}" to "/users/<id>"
func fromTemplate(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = "<" + seg[1:len(seg)-1] + ">"
		}
	}
	return strings.Join(segments, "/")
}
