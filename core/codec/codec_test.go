package codec

import (
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/searchktools/fastry/core/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRoutes = []router.Route{
	{Pattern: "/health", HandlerID: "handlers/health.lua::check"},
	{Pattern: "/users/<id>", HandlerID: "handlers/users.lua::show"},
	{Pattern: "/users/<id>/posts/<post_id>", HandlerID: "handlers/posts.lua::show"},
}

func TestCodecsPreserveRouteTable(t *testing.T) {
	for _, name := range []string{NameJSON, NameYAML, NameProtobuf} {
		t.Run(name, func(t *testing.T) {
			c, err := Get(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			data, err := c.Encode(sampleRoutes)
			require.NoError(t, err)

			decoded, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, sampleRoutes, decoded)
		})
	}
}

func TestJSONManifestShape(t *testing.T) {
	data, err := (&JSONCodec{}).Encode(sampleRoutes[:1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"routes":[{"pattern":"/health","handler_id":"handlers/health.lua::check"}]}`, string(data))

	data, err = (&JSONCodec{}).Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"routes":[]}`, string(data))
}

func TestYAMLDecodeRejectsIncompleteRoute(t *testing.T) {
	_, err := (&YAMLCodec{}).Decode([]byte("routes:\n  - pattern: /a\n"))
	assert.Error(t, err)
}

func TestOpenAPIEncode(t *testing.T) {
	c := &OpenAPICodec{Title: "demo", Version: "1.2.3"}
	data, err := c.Encode(sampleRoutes)
	require.NoError(t, err)

	doc, err := openapi3.NewLoader().LoadFromData(data)
	require.NoError(t, err)
	assert.Equal(t, "demo", doc.Info.Title)

	item := doc.Paths.Value("/users/{id}/posts/{post_id}")
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	assert.Equal(t, "handlers/posts.lua::show", item.Get.OperationID)
	require.Len(t, item.Get.Parameters, 2)
	assert.Equal(t, "id", item.Get.Parameters[0].Value.Name)
	assert.Equal(t, "post_id", item.Get.Parameters[1].Value.Name)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sampleRoutes, decoded)
}

func TestOpenAPIKeepsRegistrationOrder(t *testing.T) {
	// the later declaration names the shared parameter edge
	routes := []router.Route{
		{Pattern: "/zones/<zone>", HandlerID: "zones.lua::show"},
		{Pattern: "/items/<sku>/stock", HandlerID: "items.lua::stock"},
		{Pattern: "/items/<id>", HandlerID: "items.lua::show"},
	}
	c := &OpenAPICodec{}
	data, err := c.Encode(routes)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, routes, decoded)

	trie := router.New()
	trie.RegisterAll(decoded)
	_, vars, ok := trie.Resolve("/items/7")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "7"}, vars)
}

func TestOpenAPIDecodeWithoutOrder(t *testing.T) {
	doc := `{"openapi":"3.0.3","info":{"title":"x","version":"1"},"paths":{
"/b":{"x-fastry-handler":"b.lua::h","get":{"responses":{"200":{"description":"ok"}}}},
"/c":{"x-fastry-handler":"c.lua::h","x-fastry-order":0,"get":{"responses":{"200":{"description":"ok"}}}},
"/a":{"x-fastry-handler":"a.lua::h","get":{"responses":{"200":{"description":"ok"}}}}}}`
	decoded, err := (&OpenAPICodec{}).Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []router.Route{
		{Pattern: "/c", HandlerID: "c.lua::h"},
		{Pattern: "/a", HandlerID: "a.lua::h"},
		{Pattern: "/b", HandlerID: "b.lua::h"},
	}, decoded)
}

func TestOpenAPIDecodeRequiresHandler(t *testing.T) {
	doc := `{"openapi":"3.0.3","info":{"title":"x","version":"1"},"paths":{"/a":{"get":{"responses":{"200":{"description":"ok"}}}}}}`
	_, err := (&OpenAPICodec{}).Decode([]byte(doc))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), HandlerExtension))
}

func TestForFile(t *testing.T) {
	cases := map[string]string{
		"routes.json":         NameJSON,
		"routes.YAML":         NameYAML,
		"conf/routes.yml":     NameYAML,
		"routes.pb":           NameProtobuf,
		"api.openapi.json":    NameOpenAPI,
		"api.openapi.yaml":    NameOpenAPI,
		"/abs/path/table.bin": "",
	}
	for file, want := range cases {
		c, err := ForFile(file)
		if want == "" {
			assert.ErrorIs(t, err, ErrUnsupportedCodec, file)
			continue
		}
		require.NoError(t, err, file)
		assert.Equal(t, want, c.Name(), file)
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("msgpack")
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
}
