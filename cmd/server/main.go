package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solhook/service/config"
	"github.com/brojonat/solhook/service/db"
	"github.com/brojonat/solhook/service/events"
	"github.com/brojonat/solhook/service/ingest"
	"github.com/brojonat/solhook/service/metrics"
	"github.com/brojonat/solhook/service/server"
	"github.com/jackc/pgx/v5/pgxpool"
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

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize database store
	store := db.NewStore(dbPool)
	if cfg.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database schema ensured")
	}

	// Initialize metrics on the default registry served at /metrics
	m := metrics.NewMetrics(nil)

	// Initialize record event publishers (both optional)
	publisher := setupPublishers(cfg, logger)
	if publisher != nil {
		defer publisher.Close()
	}

	// Initialize ingestion pipeline
	envelope, err := ingest.ParseEnvelopePolicy(cfg.EnvelopePolicy)
	if err != nil {
		logger.Error("invalid envelope policy", "error", err)
		os.Exit(1)
	}
	selection, err := ingest.ParseSelectionPolicy(cfg.SelectionPolicy)
	if err != nil {
		logger.Error("invalid selection policy", "error", err)
		os.Exit(1)
	}

	processor := ingest.NewProcessor(store, ingest.Options{
		Tokens:          ingest.DefaultTokenTable(),
		WhaleThreshold:  cfg.WhaleThresholdSOL,
		Envelope:        envelope,
		Selection:       selection,
		StrictAddresses: cfg.StrictAddresses,
		PublishTimeout:  cfg.PublishTimeout,
	}, publisher, m, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, processor, store, server.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"whale_threshold_sol", cfg.WhaleThresholdSOL.String(),
		"envelope_policy", envelope,
		"selection_policy", selection,
		"strict_addresses", cfg.StrictAddresses,
		"tokens", processor.Tokens().Len(),
		"publishing", publisher != nil,
		"publish_timeout", cfg.PublishTimeout,
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

		logger.Info("server shutdown complete")
	}
}

// setupPublishers connects the configured event backends. A backend that
// cannot be reached is logged and skipped; ingestion works without events.
func setupPublishers(cfg *config.Config, logger *slog.Logger) events.Publisher {
	var pubs events.Fanout

	if cfg.NATSURL != "" {
		p, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("NATS publisher disabled", "nats_url", cfg.NATSURL, "error", err)
		} else {
			pubs = append(pubs, p)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, nil, logger)
		if err != nil {
			logger.Warn("Kafka publisher disabled", "brokers", cfg.KafkaBrokers, "error", err)
		} else {
			pubs = append(pubs, p)
		}
	}

	switch len(pubs) {
	case 0:
		logger.Info("record event publishing disabled")
		return nil
	case 1:
		return pubs[0]
	default:
		return pubs
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
