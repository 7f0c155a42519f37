package router

import "strings"

// CustomParam is the normalized edge key shared by every parameter segment
const CustomParam = "CUSTOM_PARAM"

// ParamMarker prefixes a parameter segment in a route pattern (e.g. "<id>")
const ParamMarker = '<'

// Route is a registered (pattern, handler id) pair
type Route struct {
	Pattern   string `json:"pattern" yaml:"pattern"`
	HandlerID string `json:"handler_id" yaml:"handler_id"`
}

// node is one path segment of the trie. It exclusively owns its children.
type node struct {
	segment   string // literal segment, full literal pattern, or CustomParam
	original  string // source text of the segment, "<name>" for parameters
	handlerID string // set only on terminal nodes
	children  map[string]*node
}

func newNode(segment, original string) *node {
	return &node{
		segment:  segment,
		original: original,
		children: make(map[string]*node),
	}
}

// paramName recovers the declared parameter name from "<name>" or "<name".
func (n *node) paramName() string {
	name := strings.TrimPrefix(n.original, string(ParamMarker))
	return strings.TrimSuffix(name, ">")
}

func (n *node) clone() *node {
	c := &node{
		segment:   n.segment,
		original:  n.original,
		handlerID: n.handlerID,
		children:  make(map[string]*node, len(n.children)),
	}
	for k, child := range n.children {
		c.children[k] = child.clone()
	}
	return c
}

func (n *node) count() int {
	total := 1
	for _, child := range n.children {
		total += child.count()
	}
	return total
}

// Trie resolves request paths to handler ids.
//
// A Trie is not safe for concurrent mutation. Each execution context owns a
// Clone, so resolution never takes a lock.
type Trie struct {
	root   *node
	routes []Route
}

// New creates an empty trie
func New() *Trie {
	return &Trie{root: newNode("", "")}
}

// RegisterAll registers routes in order. Later registrations win.
func (t *Trie) RegisterAll(routes []Route) {
	for _, r := range routes {
		t.Register(r.Pattern, r.HandlerID)
	}
}

// Register adds pattern -> handlerID.
//
// Patterns without a parameter marker are stored as a single root child keyed
// by the whole pattern. Parameterized patterns are split on '/' and every
// "<name>" segment shares the CustomParam edge of its parent.
func (t *Trie) Register(pattern, handlerID string) {
	t.remember(pattern, handlerID)

	if strings.IndexByte(pattern, ParamMarker) < 0 {
		if n, ok := t.root.children[pattern]; ok {
			n.handlerID = handlerID
			return
		}
		n := newNode(pattern, pattern)
		n.handlerID = handlerID
		t.root.children[pattern] = n
		return
	}

	insert(t.root, pattern, handlerID)
}

func (t *Trie) remember(pattern, handlerID string) {
	for i := range t.routes {
		if t.routes[i].Pattern == pattern {
			t.routes[i].HandlerID = handlerID
			return
		}
	}
	t.routes = append(t.routes, Route{Pattern: pattern, HandlerID: handlerID})
}

func insert(n *node, pattern, handlerID string) {
	for {
		left, right, more := strings.Cut(pattern, "/")
		key := normalize(left)

		if key == "" {
			if !more {
				// trailing slash: the handler belongs to the current node
				if n.segment != "" {
					n.handlerID = handlerID
				}
				return
			}
			pattern = right
			continue
		}

		child, ok := n.children[key]
		if !ok {
			child = newNode(key, left)
			n.children[key] = child
		} else if key == CustomParam {
			child.original = left
		}

		if !more {
			child.handlerID = handlerID
			return
		}
		n = child
		pattern = right
	}
}

func normalize(segment string) string {
	if len(segment) > 0 && segment[0] == ParamMarker {
		return CustomParam
	}
	return segment
}

// Resolve finds the handler for path. ok is false when no route matches.
// vars holds query-string pairs and captured path parameters.
func (t *Trie) Resolve(path string) (handlerID string, vars map[string]string, ok bool) {
	vars = make(map[string]string)

	if n, found := t.root.children[path]; found && n.handlerID != "" {
		return n.handlerID, vars, true
	}

	route, query, hasQuery := strings.Cut(path, "?")
	if hasQuery {
		parseQuery(query, vars)
		if n, found := t.root.children[route]; found && n.handlerID != "" {
			return n.handlerID, vars, true
		}
	}

	segments := strings.Split(route, "/")
	if len(segments) > 0 && segments[0] == "" {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return "", vars, false
	}

	n := t.root
	for _, seg := range segments {
		child, found := n.children[seg]
		if !found {
			child, found = n.children[CustomParam]
		}
		if !found {
			return "", vars, false
		}
		if child.segment == CustomParam {
			vars[child.paramName()] = seg
		}
		n = child
	}

	if n.handlerID == "" {
		return "", vars, false
	}
	return n.handlerID, vars, true
}

// parseQuery adds key=value pairs to vars; pairs without '=' are ignored.
func parseQuery(query string, vars map[string]string) {
	for _, pair := range strings.Split(query, "&") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			vars[k] = v
		}
	}
}

// Clone returns a deep copy sharing no nodes with t
func (t *Trie) Clone() *Trie {
	routes := make([]Route, len(t.routes))
	copy(routes, t.routes)
	return &Trie{root: t.root.clone(), routes: routes}
}

// Routes returns the registered routes in registration order
func (t *Trie) Routes() []Route {
	routes := make([]Route, len(t.routes))
	copy(routes, t.routes)
	return routes
}

// NodeCount returns the number of nodes below the root
func (t *Trie) NodeCount() int {
	return t.root.count() - 1
}
