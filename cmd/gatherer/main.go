package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/varunrao/wardstream/internal/api"
	"github.com/varunrao/wardstream/internal/config"
	"github.com/varunrao/wardstream/internal/database"
	"github.com/varunrao/wardstream/internal/router"
	"github.com/varunrao/wardstream/internal/version"
	"github.com/varunrao/wardstream/internal/wards"
	"github.com/varunrao/wardstream/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/gatherer.local.yaml", "path to config file")
	healthPort := flag.Int("health-port", 8080, "health endpoint port")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wardstream gatherer %s (%s)\n", version.Version, version.Commit)
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gatherer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.BaseURL,
		"transport", cfg.Stream.Transport,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Create API client
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Create ward registry
	registryCfg := wards.DefaultConfig()
	registryCfg.ReconcileInterval = cfg.Wards.ReconcileInterval
	registryCfg.IDs = cfg.Wards.IDs
	registryCfg.City = cfg.Wards.City
	registry := wards.NewRegistry(registryCfg, apiClient, logger)

	// Create the pipeline: stream supervisor -> router -> writers
	inbound := make(chan router.Inbound, cfg.Stream.BufferSize)
	supervisor := newStreamSupervisor(cfg.Stream, inbound, logger)

	routerCfg := router.RouterConfig{
		AnalysisQueueSize:   cfg.Router.AnalysisBufferSize,
		ProgressQueueSize:   cfg.Router.ProgressBufferSize,
		CompletionQueueSize: cfg.Router.CompletionBufferSize,
	}
	eventRouter := router.NewRouter(routerCfg, inbound, logger)

	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	queues := eventRouter.Queues()
	analysisWriter := writer.NewAnalysisWriter(writerCfg, queues.Analysis, pool, logger)
	progressWriter := writer.NewProgressWriter(writerCfg, queues.Progress, pool, logger)
	completionWriter := writer.NewCompletionWriter(writerCfg, queues.Completion, pool, logger)

	// Start health server early so we can monitor sync progress
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *healthPort),
		Handler: createHealthHandler(pool, registry, supervisor, eventRouter, logger),
	}

	go func() {
		logger.Info("starting health server", "port", *healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start ward registry (initial catalog sync)
	logger.Info("starting ward registry (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start ward registry", "error", err)
		os.Exit(1)
	}

	activeWards := registry.ActiveWards()
	logger.Info("ward registry started", "active_wards", len(activeWards))

	// Start downstream components before opening streams so no event is lost
	if err := analysisWriter.Start(ctx); err != nil {
		logger.Error("failed to start analysis writer", "error", err)
		os.Exit(1)
	}
	if err := progressWriter.Start(ctx); err != nil {
		logger.Error("failed to start progress writer", "error", err)
		os.Exit(1)
	}
	if err := completionWriter.Start(ctx); err != nil {
		logger.Error("failed to start completion writer", "error", err)
		os.Exit(1)
	}
	if err := eventRouter.Start(ctx); err != nil {
		logger.Error("failed to start event router", "error", err)
		os.Exit(1)
	}
	if err := supervisor.Start(ctx, registry); err != nil {
		logger.Error("failed to start stream supervisor", "error", err)
		os.Exit(1)
	}

	logger.Info("gatherer running",
		"instance_id", cfg.Instance.ID,
		"streams", supervisor.ActiveStreams(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", *healthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop in reverse order so queued events drain into the database
	supervisor.Stop(shutdownCtx)
	registry.Stop(shutdownCtx)
	eventRouter.Stop(shutdownCtx)
	analysisWriter.Stop(shutdownCtx)
	progressWriter.Stop(shutdownCtx)
	completionWriter.Stop(shutdownCtx)
	healthServer.Shutdown(shutdownCtx)

	logger.Info("gatherer stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	pool *pgxpool.Pool,
	registry wards.Registry,
	supervisor *streamSupervisor,
	eventRouter router.Router,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		// Check ward registry
		activeWards := registry.ActiveWards()
		health.Components["ward_registry"] = map[string]interface{}{
			"wards": len(activeWards),
		}
		if len(activeWards) == 0 {
			health.Status = "degraded"
		}

		// Check streams
		stale := 0
		for _, st := range supervisor.Statuses() {
			if !st.Connected || st.SinceHeartbeat > healthWindow {
				stale++
			}
		}
		health.Components["streams"] = map[string]interface{}{
			"active": supervisor.ActiveStreams(),
			"stale":  stale,
		}
		if stale > 0 && health.Status == "healthy" {
			health.Status = "degraded"
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/streams", func(w http.ResponseWriter, r *http.Request) {
		statuses := supervisor.Statuses()

		type streamInfo struct {
			Connected         bool   `json:"connected"`
			Health            string `json:"health"`
			SinceHeartbeatMS  int64  `json:"since_heartbeat_ms"`
			ReconnectAttempts int    `json:"reconnect_attempts"`
		}
		out := make(map[string]streamInfo, len(statuses))
		for wardID, st := range statuses {
			out[wardID] = streamInfo{
				Connected:         st.Connected,
				Health:            string(st.Health),
				SinceHeartbeatMS:  st.SinceHeartbeat.Milliseconds(),
				ReconnectAttempts: st.ReconnectAttempts,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/debug/router", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eventRouter.Stats())
	})

	return mux
}
