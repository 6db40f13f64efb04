package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/studiokicks/leaderboard/internal/api"
	"github.com/studiokicks/leaderboard/internal/config"
	"github.com/studiokicks/leaderboard/internal/coordinator"
	"github.com/studiokicks/leaderboard/internal/db"
	"github.com/studiokicks/leaderboard/internal/leaderboard"
	"github.com/studiokicks/leaderboard/internal/logging"
	"github.com/studiokicks/leaderboard/internal/metrics"
	"github.com/studiokicks/leaderboard/internal/model"
	"github.com/studiokicks/leaderboard/internal/scheduler"
	"github.com/studiokicks/leaderboard/internal/upstream"
	"github.com/studiokicks/leaderboard/internal/watermark"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file (TOML)")
	fullResync := flag.Bool("full-resync", false, "Clear all watermarks so the next run fetches everything")
	once := flag.Bool("once", false, "Run a single sync, print the result and exit")
	seed := flag.Bool("seed-watermarks", false, "Set missing watermarks from the newest stored row of each entity")
	flag.Parse()

	// Bootstrap logger until the configured one is ready
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "config_file", *configFile)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting leaderboard sync service",
		"config_file", *configFile,
		"upstream", cfg.Upstream.BaseURL,
		"watermark_backend", cfg.Watermarks.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database connection with pool settings
	database, err := db.OpenWithConfig(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err, "dsn", cfg.Database.DSN)
		return 1
	}
	defer database.Close()

	if !cfg.Database.SkipMigrations {
		if err := database.CreateSchema(ctx, logger); err != nil {
			logger.Error("failed to create schema", "error", err)
			return 1
		}
		version, err := database.SchemaVersion(ctx)
		if err != nil {
			logger.Error("failed to get schema version", "error", err)
			return 1
		}
		logger.Info("database schema ready", "version", version)
	} else {
		logger.Info("skipping migrations", "reason", "configured to skip")
	}

	// Watermarks
	persistence, err := watermark.NewPersistence(cfg.Watermarks, database)
	if err != nil {
		logger.Error("failed to create watermark persistence", "error", err)
		return 1
	}
	marks := watermark.NewStore(persistence, logger)
	if err := marks.Load(ctx); err != nil {
		// Load already logged it; an empty store means a full resync
		logger.Warn("continuing without stored watermarks")
	}
	if *fullResync {
		for _, entity := range model.EntityTypes {
			marks.Reset(entity)
		}
		if err := marks.Flush(ctx); err != nil {
			logger.Error("failed to clear watermarks", "error", err)
			return 1
		}
		logger.Info("watermarks cleared for full resync")
	}

	if *seed && !*fullResync {
		if err := seedWatermarks(ctx, database, marks, logger); err != nil {
			logger.Error("failed to seed watermarks", "error", err)
			return 1
		}
	}

	// Metrics
	var recorder *metrics.Recorder
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		recorder, err = metrics.NewRecorder(reg)
		if err != nil {
			logger.Error("failed to register metrics", "error", err)
			return 1
		}
		for entity, ts := range marks.Snapshot() {
			recorder.SetWatermark(entity, ts)
		}
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: cfg.API.ReadTimeout}
		go serve(logger, "metrics", metricsServer)
	}

	// Sync pipeline
	client := upstream.NewClient(cfg.Upstream, logger)
	board, err := leaderboard.New(database, cfg.Leaderboard)
	if err != nil {
		logger.Error("failed to create leaderboard", "error", err)
		return 1
	}
	syncers, err := coordinator.NewSynchronizers(cfg.Sync.Syncer(), marks, client, database, recorder, logger)
	if err != nil {
		logger.Error("failed to create synchronizers", "error", err)
		return 1
	}
	coord, err := coordinator.New(cfg.Sync.Coordinator(), syncers, client.Session(), board, marks, recorder, logger)
	if err != nil {
		logger.Error("failed to create coordinator", "error", err)
		return 1
	}
	coord.Start()

	if *once {
		return runOnce(ctx, logger, coord, metricsServer)
	}

	sched, err := scheduler.NewScheduler(cfg.Sync.Scheduler(), coord, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		coord.Stop(context.Background())
		return 1
	}
	sched.Start()

	var apiServer *http.Server
	if cfg.API.Enabled {
		router := api.NewServer(coord, board, client, logger,
			api.WithMiddlewares(api.LoggingMiddleware(logger)))
		apiServer = api.NewHTTPServer(cfg.API, router)
		go serve(logger, "api", apiServer)
	}

	logger.Info("leaderboard sync service is running")
	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("api server shutdown failed", "error", err)
		}
	}
	sched.Shutdown()
	if err := coord.Stop(shutdownCtx); err != nil {
		logger.Error("coordinator shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return 0
}

// runOnce performs a single sync and writes the result to stdout
func runOnce(ctx context.Context, logger *slog.Logger, coord *coordinator.Coordinator, metricsServer *http.Server) int {
	defer func() {
		if err := coord.Stop(context.Background()); err != nil {
			logger.Error("coordinator shutdown failed", "error", err)
		}
		if metricsServer != nil {
			metricsServer.Close()
		}
	}()

	result, err := coord.RunSync(ctx)
	if err != nil {
		logger.Error("sync failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("failed to write result", "error", err)
		return 1
	}

	if result.Degraded() {
		logger.Warn("sync completed with failures", "failed", result.Failed())
		return 2
	}
	return 0
}

// seedWatermarks fills absent watermarks from rows already in the database
func seedWatermarks(ctx context.Context, database *db.DB, marks *watermark.Store, logger *slog.Logger) error {
	for _, entity := range model.EntityTypes {
		if _, ok := marks.Get(entity); ok {
			continue
		}
		newest, found, err := database.MaxFreshness(ctx, entity)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		marks.Set(entity, newest)
		logger.Info("watermark seeded from database", "entity", entity.String(), "watermark", newest)
	}
	return marks.Flush(ctx)
}

func serve(logger *slog.Logger, name string, server *http.Server) {
	logger.Info("http listener starting", "listener", name, "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http listener failed", "listener", name, "error", err)
	}
}
