// Package config loads fastry configuration from a YAML file, FASTRY_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	ProjectDir string `yaml:"project_dir" mapstructure:"project_dir"`
	RoutesFile string `yaml:"routes_file" mapstructure:"routes_file"`
	InitScript string `yaml:"init_script" mapstructure:"init_script"`
	ServerName string `yaml:"server_name" mapstructure:"server_name"`
	AdminAddr  string `yaml:"admin_addr" mapstructure:"admin_addr"`

	InitialPoolSize int     `yaml:"initial_pool_size" mapstructure:"initial_pool_size"`
	MinPoolSize     int     `yaml:"min_pool_size" mapstructure:"min_pool_size"`
	MaxPoolSize     int     `yaml:"max_pool_size" mapstructure:"max_pool_size"`
	ScaleUpRatio    float64 `yaml:"scale_up_ratio" mapstructure:"scale_up_ratio"`
	ScaleDownRatio  float64 `yaml:"scale_down_ratio" mapstructure:"scale_down_ratio"`
	WindowSeconds   int     `yaml:"window_seconds" mapstructure:"window_seconds"`
	InboxSize       int     `yaml:"inbox_size" mapstructure:"inbox_size"`

	ReadBufferSize int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReusePort      bool          `yaml:"reuse_port" mapstructure:"reuse_port"`

	// GCPercent and MemoryLimit tune the Go runtime; 0 keeps its settings
	GCPercent   int   `yaml:"gc_percent" mapstructure:"gc_percent"`
	MemoryLimit int64 `yaml:"memory_limit" mapstructure:"memory_limit"`

	Log   LogConfig   `yaml:"log" mapstructure:"log"`
	Store StoreConfig `yaml:"store" mapstructure:"store"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig selects the backend behind app:get/set/delete
type StoreConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Addr:            "127.0.0.1:8080",
		ProjectDir:      ".",
		ServerName:      "fastry",
		InitialPoolSize: 10,
		MinPoolSize:     1,
		MaxPoolSize:     64,
		ScaleUpRatio:    5.0,
		ScaleDownRatio:  0.2,
		WindowSeconds:   60,
		InboxSize:       256,
		ReadBufferSize:  16384,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Backend:     StoreMemory,
			RedisPrefix: "fastry:",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Window returns the scaling window as a duration
func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Addr == "" {
		fail("addr is required")
	}
	if c.ProjectDir == "" && c.RoutesFile == "" {
		fail("one of project_dir or routes_file is required")
	}
	if c.InitialPoolSize < 1 {
		fail("initial_pool_size must be at least 1, got %d", c.InitialPoolSize)
	}
	if c.MinPoolSize < 1 {
		fail("min_pool_size must be at least 1, got %d", c.MinPoolSize)
	}
	if c.MaxPoolSize < 0 {
		fail("max_pool_size must not be negative, got %d", c.MaxPoolSize)
	}
	if c.MaxPoolSize > 0 && (c.MinPoolSize > c.MaxPoolSize || c.InitialPoolSize > c.MaxPoolSize) {
		fail("pool sizes must satisfy min <= initial <= max, got %d/%d/%d", c.MinPoolSize, c.InitialPoolSize, c.MaxPoolSize)
	}
	if c.InitialPoolSize < c.MinPoolSize {
		fail("initial_pool_size %d is below min_pool_size %d", c.InitialPoolSize, c.MinPoolSize)
	}
	if c.ScaleUpRatio <= 0 || c.ScaleDownRatio < 0 || c.ScaleDownRatio >= c.ScaleUpRatio {
		fail("ratios must satisfy 0 <= scale_down_ratio < scale_up_ratio, got %g and %g", c.ScaleDownRatio, c.ScaleUpRatio)
	}
	if c.WindowSeconds < 1 {
		fail("window_seconds must be at least 1, got %d", c.WindowSeconds)
	}
	if c.ReadBufferSize < 64 {
		fail("read_buffer_size must be at least 64, got %d", c.ReadBufferSize)
	}
	if c.ReadTimeout <= 0 {
		fail("read_timeout must be positive")
	}
	if c.MaxConnections < 0 {
		fail("max_connections must not be negative")
	}
	if c.GCPercent < 0 || c.MemoryLimit < 0 {
		fail("gc_percent and memory_limit must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		fail("unknown log format %q", c.Log.Format)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			fail("store.redis_addr is required for the redis backend")
		}
	default:
		fail("unknown store backend %q", c.Store.Backend)
	}

	return errors.Join(errs...)
}
