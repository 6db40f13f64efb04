// Package api serves the leaderboard and sync controls over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/studiokicks/leaderboard/internal/coordinator"
	"github.com/studiokicks/leaderboard/internal/leaderboard"
	"github.com/studiokicks/leaderboard/internal/model"
)

// Syncer is the coordinator surface the API drives
type Syncer interface {
	RunSync(ctx context.Context) (*coordinator.RunResult, error)
	LastResult() *coordinator.RunResult
	Watermarks() map[model.EntityType]int64
	Pending() int
}

// Board answers leaderboard queries
type Board interface {
	RankedAttendance(ctx context.Context, since int64) ([]leaderboard.Entry, error)
	MonthStart() int64
}

// UpstreamStatus reports the studio API status
type UpstreamStatus interface {
	Status(ctx context.Context) (map[string]any, error)
}

// Config holds HTTP API server settings
type Config struct {
	Enabled         bool          `toml:"enabled"`
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DefaultConfig returns the default API configuration. The write timeout
// covers a full sync run triggered by POST /sync.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks API configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("api addr must be specified")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("api timeouts must be positive")
	}
	return nil
}

// ServerOption configures the API router
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the router
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer creates the HTTP router
func NewServer(syncer Syncer, board Board, upstream UpstreamStatus, logger *slog.Logger, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	routes := &Routes{syncer: syncer, board: board, upstream: upstream, logger: logger}
	r.Get("/healthz", healthHandler)
	r.Get("/leaderboard", routes.getLeaderboard)
	r.Post("/sync", routes.postSync)
	r.Route("/status", func(r chi.Router) {
		r.Get("/", routes.getStatus)
		r.Get("/upstream", routes.getUpstreamStatus)
	})

	return r
}

// LoggingMiddleware logs each request once it has been served
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

// NewHTTPServer wraps handler with the configured address and timeouts
func NewHTTPServer(config Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
