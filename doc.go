/*
Package fastry is an HTTP front end for Lua route handlers.

A project declares routes in its Lua sources with a marker comment above each
handler function:

	-->r /users/<id>
	function show_user(app, request)
	  return { code = 200, type = "application/json", body = '{"id":"' .. request.path_variables.id .. '"}' }
	end

fastry discovers the declarations, builds a route trie and serves requests
from a pool of execution contexts. A single dispatcher goroutine accepts each
connection, reads the request and assigns it round-robin to an execution
context's inbox. Every execution context owns a copy of the route trie, a
handler cache and an application handle, and runs handlers through one shared
Lua runtime whose lock admits a single handler body at a time. The pool grows
or shrinks by one execution context per scaling window, based on the observed
requests per second per execution context.

Modules

  - app: Assembles configuration, routes, script runtime, dispatcher and admin server
  - config: YAML file, FASTRY_* environment and flag configuration
  - core: Dispatcher (Engine), scaling controller and request processor
  - core/router: Route trie with parameter capture
  - core/http: Request parsing and response framing
  - core/script: Embedded Lua runtime and application handle
  - core/handlers: Per execution context handler cache
  - core/pools: Execution contexts, the worker pool and read buffers
  - core/discovery: Route declaration discovery
  - core/codec: Route table encodings (JSON, YAML, protobuf, OpenAPI)
  - core/appstate: Application state store (memory, Redis)
  - core/admin: Health, metrics, routes and worker statistics endpoints
  - core/observability: Prometheus metrics
  - logging: Structured logger construction

Quick Start

	fastry serve --dir ./examples/hello --admin-addr 127.0.0.1:9090
	fastry routes --dir ./examples/hello --pretty
*/
package fastry

// Version is the fastry release version
const Version = "0.1.0"
