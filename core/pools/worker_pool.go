package pools

import (
	"errors"
	"sync"
)

// WorkerPool is the ordered, resizable set of running workers plus the
// round-robin cursor used to assign jobs.
//
// Membership is changed only by the dispatcher goroutine. The lock exists so
// that Stats can be read from elsewhere (e.g. the admin server).
type WorkerPool struct {
	mu      sync.RWMutex
	workers []*Worker
	cursor  int
	removed uint64
}

// NewWorkerPool creates an empty pool
func NewWorkerPool() *WorkerPool {
	return &WorkerPool{}
}

// Add appends a started worker
func (p *WorkerPool) Add(w *Worker) {
	p.mu.Lock()
	p.workers = append(p.workers, w)
	p.mu.Unlock()
}

// Len returns the number of workers
func (p *WorkerPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Workers returns a snapshot of the workers in assignment order
func (p *WorkerPool) Workers() []*Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Worker(nil), p.workers...)
}

// Dispatch sends job to the worker under the cursor and advances the cursor.
// A worker that refuses the job because it has stopped is dropped from the
// pool and the next one is tried. It returns the id of the receiving worker.
func (p *WorkerPool) Dispatch(job Job) (int, error) {
	for {
		p.mu.RLock()
		if len(p.workers) == 0 {
			p.mu.RUnlock()
			return -1, ErrNoWorkers
		}
		idx := p.cursor
		if idx >= len(p.workers) {
			idx = 0
		}
		w := p.workers[idx]
		p.mu.RUnlock()

		err := w.Send(job)
		if err == nil {
			p.mu.Lock()
			p.cursor = idx + 1
			if p.cursor >= len(p.workers) {
				p.cursor = 0
			}
			p.mu.Unlock()
			return w.ID(), nil
		}
		if !errors.Is(err, ErrWorkerStopped) {
			return -1, err
		}

		// the slot at idx now holds the next worker, so the cursor stays put
		p.removeAt(idx)
	}
}

func (p *WorkerPool) removeAt(idx int) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.workers) {
		return nil
	}
	w := p.workers[idx]
	p.workers = append(p.workers[:idx], p.workers[idx+1:]...)
	if p.cursor > idx {
		p.cursor--
	}
	if p.cursor >= len(p.workers) {
		p.cursor = 0
	}
	p.removed++
	return w
}

// RemoveLast drops the last worker and sends it the stop sentinel. The worker
// drains its inbox before exiting; the returned worker's Done reports that.
func (p *WorkerPool) RemoveLast() *Worker {
	p.mu.RLock()
	n := len(p.workers)
	p.mu.RUnlock()
	if n == 0 {
		return nil
	}

	w := p.removeAt(n - 1)
	if w != nil {
		w.Stop()
	}
	return w
}

// StopAll stops every worker, empties the pool and waits for all of them to
// drain.
func (p *WorkerPool) StopAll() {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.cursor = 0
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	for _, w := range workers {
		<-w.Done()
	}
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := WorkerPoolStats{
		NumWorkers: len(p.workers),
		Cursor:     p.cursor,
		Removed:    p.removed,
		Workers:    make([]WorkerStats, 0, len(p.workers)),
	}
	for _, w := range p.workers {
		ws := w.Stats()
		stats.Processed += ws.Processed
		stats.Queued += ws.Queued
		stats.Workers = append(stats.Workers, ws)
	}
	return stats
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers int           `json:"num_workers"`
	Cursor     int           `json:"cursor"`
	Removed    uint64        `json:"removed"`
	Processed  uint64        `json:"processed"`
	Queued     int           `json:"queued"`
	Workers    []WorkerStats `json:"workers"`
}
