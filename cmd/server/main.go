// Command server runs the LocalShop Connect order service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hariomGiri/localshop-connect-sub001/internal/app"
	"github.com/hariomGiri/localshop-connect-sub001/internal/config"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("order-service", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting order service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Any("kafka_brokers", cfg.KafkaBrokers),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return err
	}

	log.Info("order service stopped")
	return nil
}
