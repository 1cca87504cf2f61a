package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"itemservice/internal/application/factories/infrastructure"
	"itemservice/internal/config"
	"itemservice/internal/consumer"
	"itemservice/internal/infrastructure/kafka"
	"itemservice/internal/infrastructure/postgres"
	redisInfra "itemservice/internal/infrastructure/redis"
	"itemservice/internal/metrics"
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
		if err := metrics.Serve(ctx, cfg.Consumer.MetricsPort, logger); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		return
	}

	kafkaConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		StartOffset: cfg.Kafka.StartOffset,
	})
	defer kafkaConsumer.Close()

	invalidator := consumer.NewCacheInvalidator(
		kafkaConsumer,
		postgres.NewInboxRepository(pgPool),
		redisInfra.NewItemCache(redisClient, cfg.Redis.CacheTTL),
		consumer.Options{Name: cfg.Kafka.GroupID, MaxRetries: cfg.Consumer.MaxRetries},
		logger,
	)

	if err := invalidator.Run(ctx); err != nil {
		logger.Error("consumer stopped with error", "error", err)
	}

	logger.Info("consumer exited")
}
