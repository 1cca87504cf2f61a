package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"itemservice/internal/config"
	"itemservice/internal/infrastructure/postgres"
)

func main() {
	fix := flag.Bool("fix", false, "reset processing outbox events to new")
	limit := flag.Int("n", 5, "rows to show per table")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewClient(ctx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		MaxConns: 2,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	outboxRepo := postgres.NewOutboxRepository(pool)

	if *fix {
		n, err := outboxRepo.ResetProcessing(ctx)
		if err != nil {
			fmt.Printf("Fix failed: %v\n", err)
		} else {
			fmt.Printf("Fixed %d messages\n", n)
		}
	}

	fmt.Println("--- Items ---")
	items, err := postgres.NewItemRepository(pool).List(ctx)
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
	}
	if len(items) > *limit {
		items = items[len(items)-*limit:]
	}
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		fmt.Printf("ID: %s | Status: %s | Updated: %v\n", it.ID, it.Status, it.UpdatedAt)
	}

	fmt.Println("\n--- Outbox ---")
	events, err := outboxRepo.ListRecent(ctx, *limit)
	if err != nil {
		fmt.Printf("Query failed: %v\n", err)
	}
	for _, e := range events {
		fmt.Printf("ID: %s | Status: %s | Type: %s | Item: %s\n", e.ID, e.Status, e.EventType, e.AggregateID)
	}
}
