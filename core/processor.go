package core

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/searchktools/fastry/core/handlers"
	"github.com/searchktools/fastry/core/http"
	"github.com/searchktools/fastry/core/observability"
	"github.com/searchktools/fastry/core/pools"
	"github.com/searchktools/fastry/core/router"
	"github.com/searchktools/fastry/core/script"
	"github.com/searchktools/fastry/logging"
)

// ProcessorConfig holds what every RequestProcessor shares
type ProcessorConfig struct {
	Routes       *router.Trie
	Runtime      *script.Runtime
	InitScript   string
	ServerName   string
	WriteTimeout time.Duration
	Monitor      *observability.Monitor
	Logger       *slog.Logger
	Clock        func() time.Time
	// Context is passed to handlers for app state access
	Context context.Context
}

// RequestProcessor turns one job into one written response. Each execution
// context owns one, along with its private route table copy, handler cache and
// application handle.
type RequestProcessor struct {
	worker  int
	routes  *router.Trie
	cache   *handlers.Cache
	runtime *script.Runtime
	app     *script.Application

	serverName   string
	writeTimeout time.Duration
	monitor      *observability.Monitor
	logger       *slog.Logger
	now          func() time.Time
	ctx          context.Context
}

// NewRequestProcessor builds the processor for worker. The route table is
// cloned and the application handle is created here, running the init script
// if one is configured.
func NewRequestProcessor(worker int, cfg ProcessorConfig) (*RequestProcessor, error) {
	app, err := cfg.Runtime.NewApplication(worker, cfg.InitScript)
	if err != nil {
		return nil, err
	}

	p := &RequestProcessor{
		worker:       worker,
		routes:       cfg.Routes.Clone(),
		runtime:      cfg.Runtime,
		app:          app,
		serverName:   cfg.ServerName,
		writeTimeout: cfg.WriteTimeout,
		monitor:      cfg.Monitor,
		logger:       logging.OrNop(cfg.Logger).With("worker", worker),
		now:          cfg.Clock,
		ctx:          cfg.Context,
	}
	if p.serverName == "" {
		p.serverName = DefaultServerName
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.ctx == nil {
		p.ctx = context.Background()
	}
	p.cache = handlers.NewCache(meteredLoader{runtime: cfg.Runtime, monitor: cfg.Monitor})
	return p, nil
}

// ProcessorFactory returns a factory suitable for NewEngine
func ProcessorFactory(cfg ProcessorConfig) func(id int) (pools.Processor, error) {
	return func(id int) (pools.Processor, error) {
		return NewRequestProcessor(id, cfg)
	}
}

// CachedHandlers returns the number of handlers this processor has loaded
func (p *RequestProcessor) CachedHandlers() int {
	return p.cache.Len()
}

// Process implements pools.Processor
func (p *RequestProcessor) Process(job pools.Job) {
	start := p.now()
	requestID := uuid.NewString()

	resp, proto, outcome, handlerID, path := p.handle(job.Raw, requestID)

	if err := p.write(job.Conn, http.Format(resp, proto, p.serverName, p.now())); err != nil {
		outcome = observability.OutcomeWriteError
		p.logger.Warn("write response", "request_id", requestID, "error", err)
	}

	elapsed := p.now().Sub(start)
	p.monitor.RecordRequest(outcome, elapsed)
	p.logger.Debug("request",
		"request_id", requestID,
		"path", path,
		"handler", handlerID,
		"status", resp.Code,
		"outcome", string(outcome),
		"duration", elapsed,
	)
}

func (p *RequestProcessor) handle(raw []byte, requestID string) (resp http.Response, proto string, outcome observability.Outcome, handlerID, path string) {
	req, err := http.ParseRequest(raw)
	if err != nil {
		p.logger.Info("bad request", "request_id", requestID, "error", err)
		return http.BadRequest(), http.DefaultProto, observability.OutcomeBadRequest, "", ""
	}
	proto, path = req.Proto, req.Path

	handlerID, vars, ok := p.routes.Resolve(req.Path)
	if !ok {
		return http.NotFound(), proto, observability.OutcomeNotFound, "", path
	}
	req.PathVariables = vars

	h, err := p.cache.GetOrLoad(handlerID)
	if err != nil {
		p.logger.Error("load handler", "request_id", requestID, "handler", handlerID, "error", err)
		return http.InternalError(), proto, observability.OutcomeLoadError, handlerID, path
	}

	resp, err = p.runtime.Invoke(p.ctx, p.app, h, req, requestID)
	if err != nil {
		p.logger.Error("invoke handler", "request_id", requestID, "handler", handlerID, "error", err)
		return http.InternalError(), proto, observability.OutcomeInvokeError, handlerID, path
	}
	return resp, proto, observability.OutcomeOK, handlerID, path
}

// write sends the response and closes the connection
func (p *RequestProcessor) write(conn net.Conn, data []byte) error {
	if conn == nil {
		return nil
	}
	defer conn.Close()

	if p.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	_, err := conn.Write(data)
	return err
}

// meteredLoader counts handler loads on the way through to the runtime
type meteredLoader struct {
	runtime *script.Runtime
	monitor *observability.Monitor
}

func (l meteredLoader) Load(source, symbol string) (*script.Handler, error) {
	h, err := l.runtime.Load(source, symbol)
	l.monitor.RecordHandlerLoad(err)
	return h, err
}
