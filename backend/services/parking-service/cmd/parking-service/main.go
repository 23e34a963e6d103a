// Command parking-service runs the prepaid parking card API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"parkcard/backend/libs/logging"
	"parkcard/backend/services/parking-service/internal/app"
	"parkcard/backend/services/parking-service/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "parking-service: read .env: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger("parking-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "parking-service: build logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(logger); err != nil {
		logger.Error("parking service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("configuration loaded",
		zap.String("driver", cfg.Database.Driver),
		zap.String("addr", cfg.HTTPAddress()),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("nats", cfg.NATS.URL != ""),
	)

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
