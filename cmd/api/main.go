package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"itemservice/internal/api"
	"itemservice/internal/application/factories/infrastructure"
	"itemservice/internal/config"
	"itemservice/internal/infrastructure/postgres"
	redisInfra "itemservice/internal/infrastructure/redis"
	"itemservice/internal/processing"
	"itemservice/internal/usecase"
	"itemservice/internal/workerpool"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
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
	err = run(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}

	if err := postgres.Migrate(ctx, pgPool); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Redis is optional: without it reads skip the cache and POSTs are not idempotent.
	var (
		redisClient *redis.Client
		itemCache   usecase.ItemCache
	)
	redisClient, err = infraFactory.Redis(ctx)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	} else {
		itemCache = redisInfra.NewItemCache(redisClient, cfg.Redis.CacheTTL)
	}

	// Repositories
	itemRepo := postgres.NewItemRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	pool := workerpool.New(cfg.Processing.Workers, logger)
	defer pool.Close()

	processor := processing.NewProcessor(
		usecase.NewProcessingStore(txManager, itemRepo, outboxRepo, itemCache),
		pool,
		logger,
		processing.WithBatchTimeout(cfg.Processing.BatchTimeout),
	)

	// UseCases
	listItemsUC := usecase.NewListItems(itemRepo)
	getItemUC := usecase.NewGetItem(itemCache, itemRepo)
	createItemUC := usecase.NewCreateItem(txManager, itemRepo, outboxRepo)
	updateItemUC := usecase.NewUpdateItem(txManager, itemRepo, outboxRepo, itemCache)
	deleteItemUC := usecase.NewDeleteItem(txManager, itemRepo, outboxRepo, itemCache)
	processItemsUC := usecase.NewProcessItems(processor)

	handlers := api.NewHandlers(listItemsUC, getItemUC, createItemUC, updateItemUC, deleteItemUC, processItemsUC, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(handlers, redisClient),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.HTTP.Port, "workers", pool.Size())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
