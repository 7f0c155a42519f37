package pools

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync/atomic"

	"github.com/searchktools/fastry/logging"
)

var (
	ErrWorkerStopped = errors.New("worker stopped")
	ErrNoWorkers     = errors.New("no running workers")
)

// Job is one accepted connection and the bytes read from it
type Job struct {
	Conn net.Conn
	Raw  []byte

	stop bool
}

// Processor handles a job to completion. It owns whatever per-worker state it
// needs and is only ever called from its worker's goroutine.
type Processor interface {
	Process(job Job)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(job Job)

func (f ProcessorFunc) Process(job Job) { f(job) }

// WorkerState is the lifecycle state of a worker
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateProcessing
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// Worker is an execution context: a goroutine draining its own FIFO inbox.
//
// Stop enqueues a sentinel behind any queued jobs, so a stopping worker
// finishes its backlog before it exits.
type Worker struct {
	id        int
	inbox     chan Job
	processor Processor
	logger    *slog.Logger

	state     atomic.Int32
	stopping  atomic.Bool
	processed atomic.Uint64
	panics    atomic.Uint64
	done      chan struct{}
}

// NewWorker creates a worker with an inbox of inboxSize. Call Start to run it.
func NewWorker(id, inboxSize int, processor Processor, logger *slog.Logger) *Worker {
	if inboxSize <= 0 {
		inboxSize = 256
	}
	return &Worker{
		id:        id,
		inbox:     make(chan Job, inboxSize),
		processor: processor,
		logger:    logging.OrNop(logger).With("worker", id),
		done:      make(chan struct{}),
	}
}

// Start runs the worker loop in a new goroutine
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.state.Store(int32(StateStopped))

	for job := range w.inbox {
		if job.stop {
			w.logger.Debug("worker stopped", "processed", w.processed.Load())
			return
		}
		w.state.Store(int32(StateProcessing))
		w.process(job)
		w.processed.Add(1)
		w.state.Store(int32(StateIdle))
	}
}

// process runs one job, converting a panic into a log line and closing the
// connection it was handling.
func (w *Worker) process(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			if job.Conn != nil {
				job.Conn.Close()
			}
		}
	}()
	w.processor.Process(job)
}

// Send enqueues job, blocking while the inbox is full. It fails with
// ErrWorkerStopped once the worker is stopping or has exited.
func (w *Worker) Send(job Job) error {
	if w.stopping.Load() {
		return ErrWorkerStopped
	}
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}

	select {
	case w.inbox <- job:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	}
}

// Stop enqueues the stop sentinel. Jobs already queued are processed first.
func (w *Worker) Stop() {
	if !w.stopping.CompareAndSwap(false, true) {
		return
	}
	select {
	case w.inbox <- Job{stop: true}:
	case <-w.done:
	}
}

// Done is closed when the worker loop has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// ID returns the worker id
func (w *Worker) ID() int { return w.id }

// State returns the current lifecycle state
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Stats returns a snapshot of the worker counters
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:        w.id,
		State:     w.State().String(),
		Queued:    len(w.inbox),
		Processed: w.processed.Load(),
		Panics:    w.panics.Load(),
	}
}

// WorkerStats contains worker statistics
type WorkerStats struct {
	ID        int    `json:"id"`
	State     string `json:"state"`
	Queued    int    `json:"queued"`
	Processed uint64 `json:"processed"`
	Panics    uint64 `json:"panics"`
}
