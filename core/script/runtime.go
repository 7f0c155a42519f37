// Package script embeds a Lua runtime for route handlers.
//
// A single lua.LState backs the whole process and every call into it holds
// one mutex, so at most one handler body executes at any instant no matter
// how many execution contexts are running. Loading, request conversion and
// result extraction happen under the same lock.
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/searchktools/fastry/core/appstate"
	"github.com/searchktools/fastry/core/http"
	"github.com/searchktools/fastry/logging"
	lua "github.com/yuin/gopher-lua"
)

var (
	ErrSourceNotFound = errors.New("handler source not found")
	ErrSymbolNotFound = errors.New("handler symbol not found")
	ErrInvalidResult  = errors.New("handler returned an invalid result")
	ErrInvocation     = errors.New("handler invocation failed")
	ErrClosed         = errors.New("script runtime closed")
)

// Handler is a loaded, invocable handler function
type Handler struct {
	Source string
	Symbol string
	fn     *lua.LFunction
}

// Application is the handle passed as the first argument to every handler
type Application struct {
	worker int
	table  *lua.LTable
}

// Worker returns the id of the execution context owning the handle
func (a *Application) Worker() int { return a.worker }

// Runtime owns the Lua state and the lock serializing access to it
type Runtime struct {
	mu      sync.Mutex
	state   *lua.LState
	store   appstate.Store
	logger  *slog.Logger
	globals map[string]lua.LGFunction
	ctx     context.Context // request context, valid while mu is held
	closed  bool
	loads   int
}

// Option configures a Runtime
type Option func(*Runtime)

// WithStore backs app:get/set/delete with store
func WithStore(store appstate.Store) Option {
	return func(r *Runtime) { r.store = store }
}

// WithLogger sets the logger used by the log() builtin
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithGlobal exposes a Go function to scripts under name
func WithGlobal(name string, fn lua.LGFunction) Option {
	return func(r *Runtime) { r.globals[name] = fn }
}

// NewRuntime creates a runtime with the standard Lua libraries opened
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		logger:  logging.Nop(),
		globals: make(map[string]lua.LGFunction),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = appstate.NewMemory()
	}

	r.state = lua.NewState()
	r.state.SetGlobal("log", r.state.NewFunction(r.luaLog))
	for name, fn := range r.globals {
		r.state.SetGlobal(name, r.state.NewFunction(fn))
	}
	return r
}

// Close releases the Lua state
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.state.Close()
	}
}

// Loads returns how many handler sources have been executed
func (r *Runtime) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// Load executes source in its own environment and returns symbol from it
func (r *Runtime) Load(source, symbol string) (*Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	env, _, err := r.runFile(source)
	if err != nil {
		return nil, err
	}
	r.loads++

	fn, ok := env.RawGetString(symbol).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, source)
	}
	return &Handler{Source: source, Symbol: symbol, fn: fn}, nil
}

// runFile compiles and runs path with a fresh global environment that falls
// back to the shared globals for builtins. It returns the environment and the
// chunk's first return value.
func (r *Runtime) runFile(path string) (*lua.LTable, lua.LValue, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, lua.LNil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, lua.LNil, fmt.Errorf("stat %s: %w", path, err)
	}

	L := r.state
	chunk, err := L.LoadFile(path)
	if err != nil {
		return nil, lua.LNil, fmt.Errorf("compile %s: %w", path, err)
	}

	env := L.NewTable()
	meta := L.NewTable()
	meta.RawSetString("__index", L.Get(lua.GlobalsIndex))
	L.SetMetatable(env, meta)
	chunk.Env = env

	if err := L.CallByParam(lua.P{Fn: chunk, NRet: 1, Protect: true}); err != nil {
		return nil, lua.LNil, fmt.Errorf("run %s: %w", path, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return env, ret, nil
}

// NewApplication builds the handle for one execution context. When
// initScript is set it runs first; a table it returns seeds the handle.
func (r *Runtime) NewApplication(worker int, initScript string) (*Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	L := r.state
	table := L.NewTable()

	if initScript != "" {
		_, ret, err := r.runFile(initScript)
		if err != nil {
			return nil, err
		}
		if seeded, ok := ret.(*lua.LTable); ok {
			table = seeded
		}
	}

	table.RawSetString("worker", lua.LNumber(worker))
	table.RawSetString("get", L.NewFunction(r.appGet))
	table.RawSetString("set", L.NewFunction(r.appSet))
	table.RawSetString("delete", L.NewFunction(r.appDelete))

	return &Application{worker: worker, table: table}, nil
}

// Invoke calls h(app, request) and extracts its (code, type, body) result
func (r *Runtime) Invoke(ctx context.Context, app *Application, h *Handler, req *http.Request, requestID string) (http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return http.Response{}, ErrClosed
	}

	r.ctx = ctx
	defer func() { r.ctx = context.Background() }()

	L := r.state
	top := L.GetTop()
	defer L.SetTop(top)

	reqValue := requestTable(L, req, requestID)
	if err := L.CallByParam(lua.P{Fn: h.fn, NRet: 1, Protect: true}, app.table, reqValue); err != nil {
		return http.Response{}, fmt.Errorf("%w: %s::%s: %v", ErrInvocation, h.Source, h.Symbol, err)
	}

	result, err := decodeResult(L.Get(-1))
	if err != nil {
		return http.Response{}, fmt.Errorf("%s::%s: %w", h.Source, h.Symbol, err)
	}
	return result, nil
}

func (r *Runtime) luaLog(L *lua.LState) int {
	r.logger.Info(L.CheckString(1), "source", "script")
	return 0
}

func (r *Runtime) appGet(L *lua.LState) int {
	value, ok, err := r.store.Get(r.ctx, L.CheckString(2))
	if err != nil {
		L.RaiseError("app:get: %v", err)
		return 0
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

func (r *Runtime) appSet(L *lua.LState) int {
	if err := r.store.Set(r.ctx, L.CheckString(2), L.ToStringMeta(L.CheckAny(3)).String()); err != nil {
		L.RaiseError("app:set: %v", err)
	}
	return 0
}

func (r *Runtime) appDelete(L *lua.LState) int {
	if err := r.store.Delete(r.ctx, L.CheckString(2)); err != nil {
		L.RaiseError("app:delete: %v", err)
	}
	return 0
}
