package core

import (
	"errors"
	"time"
)

// Engine defaults
const (
	DefaultServerName       = "fastry"
	DefaultInitialWorkers   = 10
	DefaultMinWorkers       = 1
	DefaultMaxWorkers       = 64
	DefaultInboxSize        = 256
	DefaultReadBufferSize   = 16384
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultWindow           = 60 * time.Second
	DefaultScaleUpRatio     = 5.0
	DefaultScaleDownRatio   = 0.2
	DefaultEvaluateInterval = time.Second
)

// Error definitions
var (
	ErrInvalidOptions = errors.New("invalid engine options")
	ErrEngineRunning  = errors.New("engine already serving")
)
