// Package observability exposes dispatcher and execution-context metrics
// through Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome classifies how a request ended
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeBadRequest  Outcome = "bad_request"
	OutcomeLoadError   Outcome = "load_error"
	OutcomeInvokeError Outcome = "invoke_error"
	OutcomeWriteError  Outcome = "write_error"
)

// Latency buckets, in seconds: 1ms, 5ms, 10ms, 50ms, 100ms, 500ms, 1s, 5s, 10s
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// Monitor owns the collectors. A nil *Monitor records nothing.
type Monitor struct {
	accepted     prometheus.Counter
	dropped      prometheus.Counter
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	workers      prometheus.Gauge
	scaleEvents  *prometheus.CounterVec
	handlerLoads *prometheus.CounterVec
}

// NewMonitor creates the collectors and registers them with reg
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fastry",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted and dispatched to a worker.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fastry",
			Name:      "connections_dropped_total",
			Help:      "Connections closed by the dispatcher before reaching a worker.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fastry",
			Name:      "requests_total",
			Help:      "Requests processed by workers, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fastry",
			Name:      "request_duration_seconds",
			Help:      "Time from dequeue to response written, by outcome.",
			Buckets:   latencyBuckets,
		}, []string{"outcome"}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fastry",
			Name:      "workers",
			Help:      "Execution contexts currently in the pool.",
		}),
		scaleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fastry",
			Name:      "scale_events_total",
			Help:      "Pool resize events, by direction.",
		}, []string{"direction"}),
		handlerLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fastry",
			Name:      "handler_loads_total",
			Help:      "Handler cache misses that loaded a script, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.accepted, m.dropped, m.requests, m.duration, m.workers, m.scaleEvents, m.handlerLoads)
	return m
}

// RecordAccepted counts a dispatched connection
func (m *Monitor) RecordAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

// RecordDropped counts a connection the dispatcher gave up on
func (m *Monitor) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// RecordRequest records one processed request
func (m *Monitor) RecordRequest(outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(outcome)).Inc()
	m.duration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// SetWorkers records the pool size
func (m *Monitor) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.workers.Set(float64(n))
}

// RecordScale counts a resize in direction ("up" or "down")
func (m *Monitor) RecordScale(direction string) {
	if m == nil {
		return
	}
	m.scaleEvents.WithLabelValues(direction).Inc()
}

// RecordHandlerLoad counts a handler load attempt
func (m *Monitor) RecordHandlerLoad(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.handlerLoads.WithLabelValues(result).Inc()
}

// RequestsCounter returns the request counter for outcome
func (m *Monitor) RequestsCounter(outcome string) prometheus.Counter {
	return m.requests.WithLabelValues(outcome)
}
