package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/invd/internal/api"
	"github.com/martinsuchenak/invd/internal/config"
	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/mcp"
	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/metrics"
	"github.com/martinsuchenak/invd/internal/registry"
	"github.com/martinsuchenak/invd/internal/storage"
	"github.com/martinsuchenak/invd/internal/syncer"
	"github.com/martinsuchenak/invd/internal/worker"

	// finding sources register themselves
	_ "github.com/martinsuchenak/invd/internal/snmp"
)

const syncTaskName = "sync-all"

// ServerConfig holds everything the HTTP server is built from
type ServerConfig struct {
	Config     *config.Config
	Store      storage.Storage
	Classes    *metadata.Hierarchy
	Runner     *syncer.Runner
	Scheduler  *worker.Scheduler
	MCPServer  *mcp.Server
	APIHandler *api.Handler
}

// loadClasses returns the built-in hierarchy or the one in the classes file,
// watched for changes until ctx is done.
func loadClasses(ctx context.Context, cfg *config.Config) (*metadata.Hierarchy, error) {
	if cfg.ClassesFile == "" {
		log.Info("Using built-in class hierarchy")
		return metadata.Default(), nil
	}
	classes, err := metadata.LoadFile(cfg.ClassesFile)
	if err != nil {
		return nil, err
	}
	if err := metadata.Watch(ctx, classes, cfg.ClassesFile, nil); err != nil {
		log.Warn("Class hierarchy will not be reloaded", "path", cfg.ClassesFile, "error", err)
	}
	return classes, nil
}

// newRunner builds the sync runner for the configured source. A source that
// cannot be built disables sync rather than the server.
func newRunner(cfg *config.Config, store storage.Storage, classes *metadata.Hierarchy) *syncer.Runner {
	deps := registry.Dependencies{Store: store, Classes: classes}
	source, err := registry.GetRegistry().NewSource(cfg.SyncSource, cfg, deps)
	if err != nil {
		log.Warn("Sync source unavailable, device sync disabled", "source", cfg.SyncSource, "error", err)
		return nil
	}
	log.Info("Sync source initialized", "source", source.Name(), "workers", cfg.SyncWorkers)
	return syncer.NewRunner(store, syncer.NewAction(store, classes), source, classes, cfg.SyncWorkers)
}

// Handler assembles routes and middleware
func Handler(cfg *ServerConfig) http.Handler {
	mux := http.NewServeMux()

	cfg.APIHandler.RegisterRoutes(mux)
	mux.HandleFunc("/mcp", cfg.MCPServer.GetHTTPHandler())
	if cfg.Config.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "ok")
	})

	var handler http.Handler = mux
	if cfg.Config.IsAPIAuthEnabled() {
		handler = api.AuthMiddleware(cfg.Config.APIAuthToken, handler)
	}
	handler = api.MetricsMiddleware(handler)
	return api.SecurityHeadersMiddleware(handler)
}

// RunServer serves until ctx is cancelled or a termination signal arrives
func RunServer(ctx context.Context, cfg *ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Config.ListenAddr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("Starting invd server", "addr", cfg.Config.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.Config.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+cfg.Config.ListenAddr+"/mcp")
	if cfg.Config.MetricsEnabled {
		log.Info("Metrics available", "url", "http://localhost"+cfg.Config.ListenAddr+"/metrics")
	}
	if cfg.Config.IsAPIAuthEnabled() {
		log.Info("API authentication enabled", "hashed", api.IsHashedToken(cfg.Config.APIAuthToken))
	}
	cfg.MCPServer.LogStartup()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server error", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", "error", err)
		}
	}

	log.Info("Server stopped")
	return nil
}

// Command returns the server command
func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the invd server",
		Description: "Start the HTTP server with API, MCP and metrics endpoints and the scheduled device sync",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			cfg.ApplyFlags(cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log.Info("Configuration loaded", "data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr, "sync_source", cfg.SyncSource)

			store, err := storage.NewStorage(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "backend", "SQLite", "path", cfg.DataDir)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			classes, err := loadClasses(ctx, cfg)
			if err != nil {
				log.Error("Failed to load class hierarchy", "path", cfg.ClassesFile, "error", err)
				return err
			}

			runner := newRunner(cfg, store, classes)
			var deviceSyncer api.DeviceSyncer
			if runner != nil {
				deviceSyncer = runner
			}

			pool := worker.NewWorkerPool(1)
			pool.Start()
			defer pool.Stop()
			scheduler := worker.NewScheduler(pool)
			if cfg.SyncEnabled && runner != nil {
				err := scheduler.AddTask(syncTaskName, cfg.SyncSchedule, func(ctx context.Context) error {
					runs, err := runner.SyncAll(ctx)
					log.Info("Scheduled sync finished", "devices", len(runs))
					return err
				})
				if err != nil {
					return err
				}
				scheduler.Start()
				defer scheduler.Stop()
			}

			return RunServer(ctx, &ServerConfig{
				Config:     cfg,
				Store:      store,
				Classes:    classes,
				Runner:     runner,
				Scheduler:  scheduler,
				MCPServer:  mcp.NewServer(store, classes, deviceSyncer, cfg.MCPAuthToken),
				APIHandler: api.NewHandler(store, classes, deviceSyncer),
			})
		},
	}
}
