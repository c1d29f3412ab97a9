package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/turdhunter-api/internal/clock"
	"github.com/turdhunter-api/internal/config"
	"github.com/turdhunter-api/internal/handler"
	"github.com/turdhunter-api/internal/kafka"
	"github.com/turdhunter-api/internal/memory"
	"github.com/turdhunter-api/internal/metrics"
	"github.com/turdhunter-api/internal/postgres"
	"github.com/turdhunter-api/internal/redis"
	"github.com/turdhunter-api/internal/service"
	"github.com/turdhunter-api/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envPath); err != nil {
		logger.Info("no .env file loaded", "path", *envPath)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// loadConfig reads the config file, falling back to defaults only when it does not exist
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("config file not found, using defaults", "path", path)
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

// run owns every acquired resource so that deferred cleanup happens on all exit paths
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	m := metrics.New()
	clk := clock.New()
	scoreService := service.NewScoreService(store, &cfg.Leaderboard, clk, m, logger)
	subscriptionService := service.NewSubscriptionService(store, clk, m, logger)

	// Storage health drives /ready
	healthWorker := worker.NewHealthWorker(store, &cfg.Health, logger)
	if err := healthWorker.Start(ctx); err != nil {
		return fmt.Errorf("starting health worker: %w", err)
	}
	defer func() {
		if err := healthWorker.Stop(); err != nil {
			logger.Error("failed to stop health worker", "error", err)
		}
	}()

	// Kafka ingestion is optional; the HTTP API works without it
	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(&cfg.Kafka, scoreService, m, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := startConsumer(ctx, consumer, cfg.Kafka.StartTimeout); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			_ = consumer.Stop()
		} else {
			defer func() {
				if err := consumer.Stop(); err != nil {
					logger.Error("failed to stop Kafka consumer", "error", err)
				}
			}()
		}
	}

	httpHandler := handler.NewHandler(scoreService, subscriptionService, healthWorker, m, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "backend", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-quit:
	}

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// startConsumer waits at most timeout for the first consumer group session
func startConsumer(ctx context.Context, consumer *kafka.Consumer, timeout time.Duration) error {
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return consumer.Start(startCtx)
}

// openStore connects the configured backend and prepares its schema
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := repo.RunMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		return repo, nil

	case config.BackendRedis:
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		store, err := redis.NewStore(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}
		logger.Info("connected to Redis")
		return store, nil

	case config.BackendMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
