package http

import "strings"

// Methods accepted by the parser
var methods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"PATCH":   {},
	"DELETE":  {},
	"HEAD":    {},
	"OPTIONS": {},
}

// Request is a parsed request as seen by an execution context
type Request struct {
	Method string
	Path   string // raw request target, may carry a ?query suffix
	Proto  string

	// Frequently read header, also present in Headers
	ContentType string

	// All headers, keyed by their canonical spelling on the wire
	Headers map[string]string

	Body []byte

	// Filled by the route resolver: query pairs and path parameters
	PathVariables map[string]string
}

// SetHeader stores a header, mirroring Content-Type into its field
func (r *Request) SetHeader(key, value string) {
	if strings.EqualFold(key, "Content-Type") {
		r.ContentType = value
	}
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

// Header returns a header value, matching the key case-insensitively
func (r *Request) Header(key string) string {
	if v, ok := r.Headers[key]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// IsJSON reports whether the body is declared as JSON
func (r *Request) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "json")
}
