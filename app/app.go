// Package app assembles a fastry server from its configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/searchktools/fastry/config"
	"github.com/searchktools/fastry/core"
	"github.com/searchktools/fastry/core/admin"
	"github.com/searchktools/fastry/core/appstate"
	"github.com/searchktools/fastry/core/codec"
	"github.com/searchktools/fastry/core/discovery"
	"github.com/searchktools/fastry/core/observability"
	"github.com/searchktools/fastry/core/pools"
	"github.com/searchktools/fastry/core/router"
	"github.com/searchktools/fastry/core/script"
	"github.com/searchktools/fastry/logging"
	"golang.org/x/sync/errgroup"
)

// App is one configured server: route table, script runtime, dispatcher and
// optional admin endpoint.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	routes   []router.Route
	store    appstate.Store
	runtime  *script.Runtime
	registry *prometheus.Registry
	engine   *core.Engine
}

// LoadRoutes returns the route table named by cfg: the routes_file manifest
// when set, otherwise the declarations discovered under project_dir.
func LoadRoutes(cfg *config.Config) ([]router.Route, error) {
	if cfg.RoutesFile != "" {
		c, err := codec.ForFile(cfg.RoutesFile)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(cfg.RoutesFile)
		if err != nil {
			return nil, fmt.Errorf("read routes file: %w", err)
		}
		routes, err := c.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode routes file %s: %w", cfg.RoutesFile, err)
		}
		return routes, nil
	}
	return discovery.Discover(cfg.ProjectDir)
}

// OpenStore connects the application state backend
func OpenStore(ctx context.Context, cfg config.StoreConfig) (appstate.Store, error) {
	switch cfg.Backend {
	case config.StoreRedis:
		return appstate.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	default:
		return appstate.NewMemory(), nil
	}
}

// New builds the application. The execution contexts start here, so an init
// script error surfaces before Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)

	if cfg.GCPercent > 0 || cfg.MemoryLimit > 0 {
		prev := pools.ApplyGCConfig(pools.GCConfig{Percent: cfg.GCPercent, MemoryLimit: cfg.MemoryLimit})
		logger.Info("gc tuned", "gc_percent", cfg.GCPercent, "memory_limit", cfg.MemoryLimit, "previous_gc_percent", prev.Percent)
	}

	routes, err := LoadRoutes(cfg)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		logger.Warn("no routes declared", "project_dir", cfg.ProjectDir, "routes_file", cfg.RoutesFile)
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		routes:   routes,
		store:    store,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	monitor := observability.NewMonitor(a.registry)

	trie := router.New()
	trie.RegisterAll(routes)

	a.runtime = script.NewRuntime(
		script.WithStore(store),
		script.WithLogger(logger.With("component", "script")),
	)

	a.engine, err = core.NewEngine(core.ProcessorFactory(core.ProcessorConfig{
		Routes:       trie,
		Runtime:      a.runtime,
		InitScript:   cfg.InitScript,
		ServerName:   cfg.ServerName,
		WriteTimeout: cfg.WriteTimeout,
		Monitor:      monitor,
		Logger:       logger,
		Context:      context.WithoutCancel(ctx),
	}), core.Options{
		InitialWorkers: cfg.InitialPoolSize,
		MinWorkers:     cfg.MinPoolSize,
		MaxWorkers:     cfg.MaxPoolSize,
		InboxSize:      cfg.InboxSize,
		ReadBufferSize: cfg.ReadBufferSize,
		ReadTimeout:    cfg.ReadTimeout,
		MaxConnections: cfg.MaxConnections,
		ReusePort:      cfg.ReusePort,
		Scaler: core.ScalerConfig{
			Window:         cfg.Window(),
			ScaleUpRatio:   cfg.ScaleUpRatio,
			ScaleDownRatio: cfg.ScaleDownRatio,
		},
		Logger:  logger,
		Monitor: monitor,
	})
	if err != nil {
		a.runtime.Close()
		store.Close()
		return nil, err
	}

	logger.Info("application ready", "routes", len(routes), "store", cfg.Store.Backend)
	return a, nil
}

// Routes returns the loaded route table
func (a *App) Routes() []router.Route {
	return a.routes
}

// Engine returns the dispatcher
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Run serves requests, and the admin endpoint when configured, until ctx is
// cancelled. Execution contexts drain their inboxes before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.engine.ListenAndServe(gctx, a.cfg.Addr)
	})

	if a.cfg.AdminAddr != "" {
		h := admin.NewHandler(admin.Config{
			Routes:   a.routes,
			Stats:    a.engine,
			Gatherer: a.registry,
			Logger:   a.logger,
		})
		g.Go(func() error {
			return admin.ListenAndServe(gctx, a.cfg.AdminAddr, h, a.logger)
		})
	}

	start := time.Now()
	err := g.Wait()
	a.logger.Info("shutdown complete", "uptime", time.Since(start).Round(time.Second))
	return err
}

func (a *App) close() {
	a.runtime.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}
