package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor(reg)

	m.RecordAccepted()
	m.RecordAccepted()
	m.RecordDropped()
	m.RecordRequest(OutcomeOK, 10*time.Millisecond)
	m.RecordRequest(OutcomeOK, 20*time.Millisecond)
	m.RecordRequest(OutcomeNotFound, time.Millisecond)
	m.SetWorkers(4)
	m.RecordScale("up")
	m.RecordHandlerLoad(nil)
	m.RecordHandlerLoad(errors.New("missing"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.accepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("not_found")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.workers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scaleEvents.WithLabelValues("up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerLoads.WithLabelValues("error")))

	n, err := testutil.GatherAndCount(reg, "fastry_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilMonitorIsNoop(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.RecordAccepted()
		m.RecordDropped()
		m.RecordRequest(OutcomeOK, time.Second)
		m.SetWorkers(1)
		m.RecordScale("down")
		m.RecordHandlerLoad(nil)
	})
}
