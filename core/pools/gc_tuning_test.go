package pools

import (
	"math"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyGCConfig(t *testing.T) {
	prev := ApplyGCConfig(GCConfig{Percent: 250, MemoryLimit: 1 << 30})
	t.Cleanup(func() {
		debug.SetGCPercent(prev.Percent)
		if prev.MemoryLimit > 0 {
			debug.SetMemoryLimit(prev.MemoryLimit)
		} else {
			debug.SetMemoryLimit(math.MaxInt64)
		}
	})

	assert.Equal(t, 250, debug.SetGCPercent(250))
	assert.Equal(t, int64(1<<30), debug.SetMemoryLimit(-1))

	// zero values leave the current settings in place
	again := ApplyGCConfig(GCConfig{})
	assert.Equal(t, 250, again.Percent)
	assert.Equal(t, 250, debug.SetGCPercent(250))
}
