package pools

import (
	"math"
	"runtime/debug"
)

// GCConfig holds GC tuning parameters
type GCConfig struct {
	// Percent sets the garbage collection target percentage.
	// 0 leaves the runtime setting (GOGC) untouched.
	Percent int

	// MemoryLimit sets the soft memory limit in bytes.
	// 0 leaves the runtime setting (GOMEMLIMIT) untouched.
	MemoryLimit int64
}

// ApplyGCConfig applies cfg and returns the settings it replaced, so callers
// can restore them.
func ApplyGCConfig(cfg GCConfig) GCConfig {
	prev := GCConfig{
		Percent:     debug.SetGCPercent(-1),
		MemoryLimit: debug.SetMemoryLimit(-1),
	}
	// SetGCPercent(-1) above disabled the collector; put the old value back
	// unless a new one was requested.
	if cfg.Percent > 0 {
		debug.SetGCPercent(cfg.Percent)
	} else {
		debug.SetGCPercent(prev.Percent)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
	if prev.MemoryLimit == math.MaxInt64 {
		prev.MemoryLimit = 0
	}
	return prev
}
