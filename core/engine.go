package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/searchktools/fastry/core/observability"
	"github.com/searchktools/fastry/core/pools"
	"github.com/searchktools/fastry/logging"
	"golang.org/x/net/netutil"
)

// Options configures an Engine. Zero values take the package defaults.
type Options struct {
	InitialWorkers int
	MinWorkers     int
	// MaxWorkers bounds scale-up; 0 means unbounded
	MaxWorkers int
	InboxSize  int

	ReadBufferSize int
	ReadTimeout    time.Duration
	// MaxConnections caps concurrently open connections; 0 means no cap
	MaxConnections int
	// ReusePort sets SO_REUSEPORT on the listening socket where supported
	ReusePort bool

	Scaler ScalerConfig
	// EvaluateInterval is how often the window is checked while no
	// connections arrive
	EvaluateInterval time.Duration

	Logger  *slog.Logger
	Monitor *observability.Monitor
	Clock   func() time.Time
}

func (o *Options) setDefaults() {
	if o.InitialWorkers <= 0 {
		o.InitialWorkers = DefaultInitialWorkers
	}
	if o.MinWorkers <= 0 {
		o.MinWorkers = DefaultMinWorkers
	}
	if o.InboxSize <= 0 {
		o.InboxSize = DefaultInboxSize
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Scaler.Window <= 0 {
		o.Scaler.Window = DefaultWindow
	}
	if o.Scaler.ScaleUpRatio <= 0 {
		o.Scaler.ScaleUpRatio = DefaultScaleUpRatio
	}
	if o.Scaler.ScaleDownRatio <= 0 {
		o.Scaler.ScaleDownRatio = DefaultScaleDownRatio
	}
	if o.EvaluateInterval <= 0 {
		o.EvaluateInterval = DefaultEvaluateInterval
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

func (o *Options) validate() error {
	if o.MaxWorkers < 0 {
		return fmt.Errorf("%w: negative max workers %d", ErrInvalidOptions, o.MaxWorkers)
	}
	if o.MaxWorkers > 0 && o.MinWorkers > o.MaxWorkers {
		return fmt.Errorf("%w: min workers %d exceeds max workers %d", ErrInvalidOptions, o.MinWorkers, o.MaxWorkers)
	}
	if o.InitialWorkers < o.MinWorkers || (o.MaxWorkers > 0 && o.InitialWorkers > o.MaxWorkers) {
		return fmt.Errorf("%w: initial workers %d outside [%d, %d]", ErrInvalidOptions, o.InitialWorkers, o.MinWorkers, o.MaxWorkers)
	}
	if o.Scaler.ScaleDownRatio >= o.Scaler.ScaleUpRatio {
		return fmt.Errorf("%w: scale down ratio %g must be below scale up ratio %g",
			ErrInvalidOptions, o.Scaler.ScaleDownRatio, o.Scaler.ScaleUpRatio)
	}
	return nil
}

// Engine is the dispatcher. It accepts connections, reads each request once,
// hands it to the next execution context in round-robin order and resizes the
// pool from the observed request rate.
//
// All pool membership changes and scaler state belong to the goroutine running
// Serve. Stats may be called from anywhere.
type Engine struct {
	opts     Options
	factory  func(id int) (pools.Processor, error)
	pool     *pools.WorkerPool
	scaler   *Scaler
	bytePool *pools.BytePool
	logger   *slog.Logger
	monitor  *observability.Monitor
	now      func() time.Time
	nextID   int

	serving    atomic.Bool
	accepted   atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
	scaleUps   atomic.Uint64
	scaleDowns atomic.Uint64
}

// NewEngine starts opts.InitialWorkers execution contexts, each with a
// processor built by factory.
func NewEngine(factory func(id int) (pools.Processor, error), opts Options) (*Engine, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:     opts,
		factory:  factory,
		pool:     pools.NewWorkerPool(),
		scaler:   NewScaler(opts.Scaler, opts.Clock()),
		bytePool: pools.NewBytePool(),
		logger:   logging.OrNop(opts.Logger),
		monitor:  opts.Monitor,
		now:      opts.Clock,
	}

	for i := 0; i < opts.InitialWorkers; i++ {
		if err := e.addWorker(); err != nil {
			e.pool.StopAll()
			return nil, err
		}
	}

	e.logger.Info("engine initialized",
		"workers", e.pool.Len(),
		"min_workers", opts.MinWorkers,
		"max_workers", opts.MaxWorkers,
		"window", opts.Scaler.Window,
		"scale_up_ratio", opts.Scaler.ScaleUpRatio,
		"scale_down_ratio", opts.Scaler.ScaleDownRatio,
	)
	return e, nil
}

// ListenAndServe listens on addr and calls Serve
func (e *Engine) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{Control: listenControl(e.opts.ReusePort)}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		e.shutdown()
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return e.Serve(ctx, ln)
}

// Serve runs the dispatch loop on ln until ctx is cancelled or accepting
// fails. On return every execution context has drained its inbox and exited.
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	if !e.serving.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}
	if e.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, e.opts.MaxConnections)
	}
	defer e.shutdown()

	e.logger.Info("serving", "addr", ln.Addr().String())

	conns := make(chan net.Conn)
	acceptErr := make(chan error, 1)
	go e.acceptLoop(ctx, ln, conns, acceptErr)

	ticker := time.NewTicker(e.opts.EvaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ln.Close()
			return nil

		case conn := <-conns:
			e.handleConn(conn)

		case <-ticker.C:
			e.evaluate(e.now())

		case err := <-acceptErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
	}
}

func (e *Engine) acceptLoop(ctx context.Context, ln net.Listener, conns chan<- net.Conn, errc chan<- error) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			errc <- err
			return
		}
		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// handleConn reads the request with a single bounded read and dispatches it
func (e *Engine) handleConn(conn net.Conn) {
	e.accepted.Add(1)

	buf := e.bytePool.Get(e.opts.ReadBufferSize)
	conn.SetReadDeadline(time.Now().Add(e.opts.ReadTimeout))
	n, err := conn.Read(buf)
	if n == 0 {
		e.bytePool.Put(buf)
		e.logger.Debug("read request", "remote", conn.RemoteAddr().String(), "error", err)
		e.drop(conn)
		return
	}
	conn.SetReadDeadline(time.Time{})

	raw := make([]byte, n)
	copy(raw, buf[:n])
	e.bytePool.Put(buf)

	e.submit(pools.Job{Conn: conn, Raw: raw})
}

// submit dispatches job, counts it toward the current window and lets the
// scaler act if the window has elapsed.
func (e *Engine) submit(job pools.Job) {
	if !e.dispatch(job) {
		return
	}
	e.scaler.Record()
	e.evaluate(e.now())
}

func (e *Engine) dispatch(job pools.Job) bool {
	_, err := e.pool.Dispatch(job)
	if errors.Is(err, pools.ErrNoWorkers) {
		e.logger.Warn("no running workers, starting one")
		if addErr := e.addWorker(); addErr == nil {
			_, err = e.pool.Dispatch(job)
		} else {
			err = addErr
		}
	}
	if err != nil {
		e.logger.Error("dispatch", "error", err)
		e.drop(job.Conn)
		return false
	}

	e.dispatched.Add(1)
	e.monitor.RecordAccepted()
	e.monitor.SetWorkers(e.pool.Len())
	return true
}

func (e *Engine) drop(conn net.Conn) {
	e.dropped.Add(1)
	e.monitor.RecordDropped()
	if conn != nil {
		conn.Close()
	}
}

// evaluate applies a scaling decision once the window has elapsed, within the
// configured pool bounds.
func (e *Engine) evaluate(now time.Time) {
	d, ok := e.scaler.Evaluate(now, e.pool.Len())
	if !ok {
		return
	}

	switch d.Action {
	case ScaleUp:
		if e.opts.MaxWorkers > 0 && d.Workers >= e.opts.MaxWorkers {
			e.logger.Debug("scale up skipped at max workers", "workers", d.Workers, "ratio", d.Ratio)
			return
		}
		if err := e.addWorker(); err != nil {
			e.logger.Error("scale up", "error", err)
			return
		}
		e.scaleUps.Add(1)
		e.monitor.RecordScale(ScaleUp.String())
		e.logger.Info("scaled up", "workers", e.pool.Len(), "ratio", d.Ratio, "requests", d.Requests)

	case ScaleDown:
		if d.Workers <= e.opts.MinWorkers {
			return
		}
		w := e.pool.RemoveLast()
		if w == nil {
			return
		}
		e.scaleDowns.Add(1)
		e.monitor.RecordScale(ScaleDown.String())
		e.monitor.SetWorkers(e.pool.Len())
		e.logger.Info("scaled down", "workers", e.pool.Len(), "removed", w.ID(), "ratio", d.Ratio, "requests", d.Requests)
	}
}

func (e *Engine) addWorker() error {
	id := e.nextID
	proc, err := e.factory(id)
	if err != nil {
		return fmt.Errorf("create worker %d: %w", id, err)
	}
	e.nextID++

	w := pools.NewWorker(id, e.opts.InboxSize, proc, e.logger)
	w.Start()
	e.pool.Add(w)
	e.monitor.SetWorkers(e.pool.Len())
	return nil
}

func (e *Engine) shutdown() {
	n := e.pool.Len()
	e.pool.StopAll()
	e.monitor.SetWorkers(0)
	e.serving.Store(false)
	e.logger.Info("engine stopped", "workers_stopped", n, "dispatched", e.dispatched.Load())
}

// Close stops every execution context of an engine that is not serving
func (e *Engine) Close() {
	if e.serving.Load() {
		return
	}
	e.pool.StopAll()
}
