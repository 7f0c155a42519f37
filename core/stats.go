package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/searchktools/fastry/core/pools"
)

// Stats is a snapshot of dispatcher and pool state
type Stats struct {
	Accepted   uint64                `json:"accepted"`
	Dispatched uint64                `json:"dispatched"`
	Dropped    uint64                `json:"dropped"`
	ScaleUps   uint64                `json:"scale_ups"`
	ScaleDowns uint64                `json:"scale_downs"`
	MinWorkers int                   `json:"min_workers"`
	MaxWorkers int                   `json:"max_workers"`
	Pool       pools.WorkerPoolStats `json:"pool"`
	Buffers    pools.BytePoolStats   `json:"buffers"`
}

// Stats returns the current statistics
func (e *Engine) Stats() Stats {
	return Stats{
		Accepted:   e.accepted.Load(),
		Dispatched: e.dispatched.Load(),
		Dropped:    e.dropped.Load(),
		ScaleUps:   e.scaleUps.Load(),
		ScaleDowns: e.scaleDowns.Load(),
		MinWorkers: e.opts.MinWorkers,
		MaxWorkers: e.opts.MaxWorkers,
		Pool:       e.pool.Stats(),
		Buffers:    e.bytePool.Stats(),
	}
}

// StatsJSON returns the statistics as indented JSON
func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.Stats(), "", "  ")
	return string(data)
}

// StatsText returns the statistics as human-readable text
func (e *Engine) StatsText() string {
	s := e.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, `Dispatcher Statistics
=====================

Connections:
  Accepted:   %d
  Dispatched: %d
  Dropped:    %d

Pool:
  Workers:     %d (min %d, max %d)
  Scale ups:   %d
  Scale downs: %d
  Removed:     %d

Buffers:
  Gets:      %d
  Puts:      %d
  Oversized: %d
`,
		s.Accepted, s.Dispatched, s.Dropped,
		s.Pool.NumWorkers, s.MinWorkers, s.MaxWorkers,
		s.ScaleUps, s.ScaleDowns, s.Pool.Removed,
		s.Buffers.Gets, s.Buffers.Puts, s.Buffers.Oversized,
	)
	for _, w := range s.Pool.Workers {
		fmt.Fprintf(&b, "\nWorker %d: %s, queued %d, processed %d", w.ID, w.State, w.Queued, w.Processed)
	}
	return b.String()
}
