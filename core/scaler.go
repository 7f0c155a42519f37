package core

import (
	"fmt"
	"time"
)

// ScaleAction is what the scaler asks the dispatcher to do with the pool
type ScaleAction int

const (
	ScaleNone ScaleAction = iota
	ScaleUp
	ScaleDown
)

func (a ScaleAction) String() string {
	switch a {
	case ScaleNone:
		return "none"
	case ScaleUp:
		return "up"
	case ScaleDown:
		return "down"
	default:
		return fmt.Sprintf("ScaleAction(%d)", int(a))
	}
}

// ScalerConfig holds the scaling thresholds
type ScalerConfig struct {
	// Window is the evaluation interval
	Window time.Duration
	// ScaleUpRatio is the requests/sec/worker above which a worker is added
	ScaleUpRatio float64
	// ScaleDownRatio is the requests/sec/worker below which a worker is removed
	ScaleDownRatio float64
}

// Decision is the outcome of one window evaluation
type Decision struct {
	Action   ScaleAction
	Ratio    float64
	Requests uint64
	Workers  int
}

// Scaler counts dispatched requests over fixed windows and turns the observed
// per-worker rate into a scaling decision. It is owned by the dispatcher
// goroutine and does no locking.
type Scaler struct {
	cfg         ScalerConfig
	requests    uint64
	windowStart time.Time
}

// NewScaler creates a scaler whose first window starts at now
func NewScaler(cfg ScalerConfig, now time.Time) *Scaler {
	return &Scaler{cfg: cfg, windowStart: now}
}

// Record counts one dispatched request
func (s *Scaler) Record() {
	s.requests++
}

// Requests returns the count for the current window
func (s *Scaler) Requests() uint64 {
	return s.requests
}

// Evaluate returns ScaleNone until a full window has elapsed. Once it has, the
// ratio requests / window seconds / workers is compared against the
// thresholds, and the counter and window start are reset.
func (s *Scaler) Evaluate(now time.Time, workers int) (Decision, bool) {
	if now.Sub(s.windowStart) < s.cfg.Window {
		return Decision{}, false
	}

	d := Decision{Requests: s.requests, Workers: workers}
	if workers > 0 {
		d.Ratio = float64(s.requests) / s.cfg.Window.Seconds() / float64(workers)
	}
	switch {
	case workers == 0 || d.Ratio > s.cfg.ScaleUpRatio:
		d.Action = ScaleUp
	case d.Ratio < s.cfg.ScaleDownRatio:
		d.Action = ScaleDown
	}

	s.requests = 0
	s.windowStart = now
	return d, true
}
