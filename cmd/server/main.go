package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloqz/settle/service/backend"
	"github.com/bloqz/settle/service/config"
	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/dispatch"
	"github.com/bloqz/settle/service/metrics"
	natspkg "github.com/bloqz/settle/service/nats"
	"github.com/bloqz/settle/service/pipeline"
	"github.com/bloqz/settle/service/ramp"
	"github.com/bloqz/settle/service/request"
	"github.com/bloqz/settle/service/server"
	"github.com/bloqz/settle/service/solana"
	"github.com/bloqz/settle/service/track"
	"github.com/bloqz/settle/service/wallet"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool)

	// Initialize NATS publisher for settlement events
	publisher, err := natspkg.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	// Prometheus metrics on the default registry, served at /metrics
	m := metrics.NewMetrics(nil)

	// Backend API client: transaction preparation, broadcast relay, tracking,
	// payment requests
	backendClient := backend.NewClient(cfg.BackendAPIURL, cfg.BackendAPIToken, nil, logger)

	// Solana RPC client for fresh blockhashes and landed-signature checks
	// Note: For premium RPC endpoints, include API key in the URL
	solanaClient := solana.NewClient(rpc.New(cfg.SolanaRPCURL), cfg.SolanaRPCURL, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// Settlement pipeline: dispatch, tracking, fiat ramp
	dispatcher := dispatch.NewDispatcher(backendClient, solanaClient, m, logger)
	tracker := track.NewTracker(backendClient, store, publisher, m, logger)
	rampCfg := ramp.WidgetConfig{
		BaseURL: cfg.RampBaseURL,
		APIKey:  cfg.RampAPIKey,
	}
	pipe := pipeline.NewPipeline(backendClient, dispatcher, tracker, solanaClient, rampCfg, logger)

	requests := request.NewManager(backendClient, pipe, m, logger)
	rampAdapter := ramp.NewAdapter(tracker, m, logger)
	snapshots := wallet.NewSnapshotClient(cfg.SignerAPIURL, cfg.BackendAPIToken, nil, logger)

	httpServer := server.New(cfg.ServerAddr, cfg, pipe, requests, rampAdapter, snapshots, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"backend_api", cfg.BackendAPIURL,
		"solana_rpc", cfg.SolanaRPCURL,
		"nats_url", cfg.NATSURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		// Let in-flight enrichment goroutines finish before dropping the
		// database pool.
		tracker.WaitEnrichment()

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
