package pools

import (
	"sync"
	"sync/atomic"
)

// Read buffer size classes
var defaultSizes = []int{
	2048,
	8192,
	16384, // default request read buffer
	32768,
}

// BytePool is a tiered pool of read buffers
type BytePool struct {
	pools []*sync.Pool
	sizes []int

	gets      atomic.Uint64
	puts      atomic.Uint64
	oversized atomic.Uint64
}

// NewBytePool creates a pool with the standard size tiers
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a pool with custom ascending size tiers
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}
	for i, size := range sizes {
		sz := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}
	return bp
}

// Get returns a buffer of length size
func (bp *BytePool) Get(size int) []byte {
	bp.gets.Add(1)
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			buf := *bp.pools[i].Get().(*[]byte)
			return buf[:size]
		}
	}
	bp.oversized.Add(1)
	return make([]byte, size)
}

// Put returns buf to its tier. Buffers not allocated by a tier are dropped.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.puts.Add(1)
			bp.pools[i].Put(&buf)
			return
		}
	}
}

// Stats returns pool statistics
func (bp *BytePool) Stats() BytePoolStats {
	return BytePoolStats{
		Gets:      bp.gets.Load(),
		Puts:      bp.puts.Load(),
		Oversized: bp.oversized.Load(),
	}
}

// BytePoolStats contains byte pool statistics
type BytePoolStats struct {
	Gets      uint64 `json:"gets"`
	Puts      uint64 `json:"puts"`
	Oversized uint64 `json:"oversized"`
}
