package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/game-companion/scoreboard/internal/config"
	"github.com/game-companion/scoreboard/internal/handler"
	"github.com/game-companion/scoreboard/internal/kafka"
	"github.com/game-companion/scoreboard/internal/ledger"
	"github.com/game-companion/scoreboard/internal/store/postgres"
	"github.com/game-companion/scoreboard/internal/store/redisdb"
	"github.com/game-companion/scoreboard/internal/store/sqlite"
	"github.com/game-companion/scoreboard/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the score store selected by configuration
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open score store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("score store ready", "driver", cfg.Storage.Driver)

	// Initialize WebSocket hub for live leaderboard updates
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Initialize the score ledger
	scoreLedger := ledger.New(store, &cfg.Leaderboard, logger)
	scoreLedger.SetBroadcaster(wsHub)

	// Initialize Kafka consumer for score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, scoreLedger, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started")
			}
		}
	}

	// Initialize HTTP gateway
	httpHandler := handler.NewHandler(scoreLedger, wsHub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

// openStore builds the configured store backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.Storage.SQLite.Path, logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, &cfg.Storage.Postgres, logger)
	case config.DriverRedis:
		return redisdb.Open(ctx, &cfg.Storage.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
