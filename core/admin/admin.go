// Package admin serves the operator endpoints: health, metrics, the route
// table and pool statistics. It listens on its own address, separate from the
// request listener.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/searchktools/fastry/core"
	"github.com/searchktools/fastry/core/codec"
	"github.com/searchktools/fastry/core/router"
	"github.com/searchktools/fastry/logging"
)

// StatsSource reports dispatcher statistics
type StatsSource interface {
	Stats() core.Stats
}

// Config holds the admin handler dependencies
type Config struct {
	Routes   []router.Route
	Stats    StatsSource
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type server struct {
	routes []router.Route
	stats  StatsSource
	logger *slog.Logger
}

// NewHandler creates the admin router
func NewHandler(cfg Config) http.Handler {
	s := &server{
		routes: cfg.Routes,
		stats:  cfg.Stats,
		logger: logging.OrNop(cfg.Logger),
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Get("/routes", s.listRoutes)
	r.Get("/workers", s.workers)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

// listRoutes encodes the route table; ?format= selects the codec (json by default)
func (s *server) listRoutes(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = codec.NameJSON
	}
	c, err := codec.Get(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := c.Encode(s.routes)
	if err != nil {
		http.Error(w, "encode routes", http.StatusInternalServerError)
		s.logger.Error("encode routes", "format", format, "error", err)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.Write(data)
}

func (s *server) workers(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "no dispatcher", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats.Stats()); err != nil {
		s.logger.Warn("write stats", "error", err)
	}
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	logger = logging.OrNop(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("admin listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
