package pools

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the jobs each worker processed, in order
type recorder struct {
	mu   sync.Mutex
	seen map[int][]string
}

func newRecorder() *recorder {
	return &recorder{seen: make(map[int][]string)}
}

func (r *recorder) processor(id int) Processor {
	return ProcessorFunc(func(job Job) {
		r.mu.Lock()
		r.seen[id] = append(r.seen[id], string(job.Raw))
		r.mu.Unlock()
	})
}

func (r *recorder) jobs(id int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen[id]...)
}

func startPool(t *testing.T, n int, rec *recorder) *WorkerPool {
	t.Helper()
	pool := NewWorkerPool()
	for i := 0; i < n; i++ {
		w := NewWorker(i, 64, rec.processor(i), nil)
		w.Start()
		pool.Add(w)
	}
	t.Cleanup(pool.StopAll)
	return pool
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("worker %d did not stop", w.ID())
	}
}

func TestWorkerPoolRoundRobin(t *testing.T) {
	rec := newRecorder()
	pool := startPool(t, 3, rec)

	var assigned []int
	for i := 0; i < 10; i++ {
		id, err := pool.Dispatch(Job{Raw: []byte{byte('a' + i)}})
		require.NoError(t, err)
		assigned = append(assigned, id)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, assigned)

	workers := pool.Workers()
	pool.StopAll()
	for _, w := range workers {
		waitDone(t, w)
	}

	assert.Equal(t, []string{"a", "d", "g", "j"}, rec.jobs(0))
	assert.Equal(t, []string{"b", "e", "h"}, rec.jobs(1))
	assert.Equal(t, []string{"c", "f", "i"}, rec.jobs(2))
}

func TestWorkerPoolSkipsStoppedWorker(t *testing.T) {
	rec := newRecorder()
	pool := startPool(t, 3, rec)

	stale := pool.Workers()[1]
	stale.Stop()
	waitDone(t, stale)

	var assigned []int
	for i := 0; i < 4; i++ {
		id, err := pool.Dispatch(Job{Raw: []byte("x")})
		require.NoError(t, err)
		assigned = append(assigned, id)
	}

	assert.Equal(t, []int{0, 2, 0, 2}, assigned)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, uint64(1), pool.Stats().Removed)
}

func TestWorkerPoolAllStopped(t *testing.T) {
	rec := newRecorder()
	pool := startPool(t, 2, rec)
	for _, w := range pool.Workers() {
		w.Stop()
		waitDone(t, w)
	}

	_, err := pool.Dispatch(Job{})
	assert.ErrorIs(t, err, ErrNoWorkers)
	assert.Zero(t, pool.Len())
}

func TestWorkerPoolRemoveLast(t *testing.T) {
	rec := newRecorder()
	pool := startPool(t, 3, rec)

	removed := pool.RemoveLast()
	require.NotNil(t, removed)
	assert.Equal(t, 2, removed.ID())
	waitDone(t, removed)
	assert.Equal(t, StateStopped, removed.State())
	assert.Equal(t, 2, pool.Len())

	id, err := pool.Dispatch(Job{Raw: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, 0, id)
}

func TestWorkerGracefulStop(t *testing.T) {
	rec := newRecorder()
	w := NewWorker(0, 8, rec.processor(0), nil)

	for _, raw := range []string{"1", "2", "3"} {
		require.NoError(t, w.Send(Job{Raw: []byte(raw)}))
	}
	w.Stop()
	assert.ErrorIs(t, w.Send(Job{Raw: []byte("late")}), ErrWorkerStopped)

	w.Start()
	waitDone(t, w)

	assert.Equal(t, []string{"1", "2", "3"}, rec.jobs(0))
	assert.Equal(t, StateStopped, w.State())
	assert.Equal(t, uint64(3), w.Stats().Processed)
}

func TestWorkerSurvivesPanic(t *testing.T) {
	rec := newRecorder()
	inner := rec.processor(0)
	w := NewWorker(0, 8, ProcessorFunc(func(job Job) {
		if string(job.Raw) == "boom" {
			panic("boom")
		}
		inner.Process(job)
	}), nil)
	w.Start()

	require.NoError(t, w.Send(Job{Raw: []byte("boom")}))
	require.NoError(t, w.Send(Job{Raw: []byte("after")}))
	w.Stop()
	waitDone(t, w)

	assert.Equal(t, []string{"after"}, rec.jobs(0))
	assert.Equal(t, uint64(1), w.Stats().Panics)
}

func TestBytePool(t *testing.T) {
	bp := NewBytePool()

	buf := bp.Get(16384)
	assert.Len(t, buf, 16384)
	bp.Put(buf)

	small := bp.Get(100)
	assert.Len(t, small, 100)
	assert.Equal(t, 2048, cap(small))
	bp.Put(small)

	big := bp.Get(1 << 20)
	assert.Len(t, big, 1<<20)
	bp.Put(big)

	stats := bp.Stats()
	assert.Equal(t, uint64(3), stats.Gets)
	assert.Equal(t, uint64(2), stats.Puts)
	assert.Equal(t, uint64(1), stats.Oversized)
}

func BenchmarkWorkerPoolDispatch(b *testing.B) {
	pool := NewWorkerPool()
	for i := 0; i < 8; i++ {
		w := NewWorker(i, 1024, ProcessorFunc(func(Job) {}), nil)
		w.Start()
		pool.Add(w)
	}
	defer pool.StopAll()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Dispatch(Job{})
	}
}
