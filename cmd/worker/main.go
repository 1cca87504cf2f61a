package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"itemservice/internal/application/factories/infrastructure"
	"itemservice/internal/config"
	"itemservice/internal/infrastructure/postgres"
	"itemservice/internal/metrics"
	"itemservice/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := metrics.Serve(ctx, cfg.Outbox.MetricsPort, logger); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// Infrastructure
	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return
	}

	outboxRepo := postgres.NewOutboxRepository(pgPool)
	producer := infraFactory.KafkaProducer()

	w := worker.NewOutboxPoller(outboxRepo, producer, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, logger)

	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "error", err)
	}

	logger.Info("worker exited", "topic", producer.Topic())
}
