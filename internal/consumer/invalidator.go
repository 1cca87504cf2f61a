// Package consumer applies item events from Kafka to the item cache.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domainEvent "itemservice/internal/domain/event"
	"itemservice/internal/domain/inbox"
	"itemservice/internal/domain/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_item_events_total",
		Help: "The total number of item events by result",
	}, []string{"result"})
	handleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consumer_processing_duration_seconds",
		Help:    "Time taken to handle one item event",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)

type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Inbox interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	SaveIfNotExists(ctx context.Context, tx pgx.Tx, ev inbox.Event) (bool, error)
}

type CacheDeleter interface {
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Name       string
	MaxRetries int
	// Backoff returns the wait before retry attempt n (n >= 1).
	Backoff func(attempt int) time.Duration
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

type CacheInvalidator struct {
	source MessageSource
	inbox  Inbox
	cache  CacheDeleter
	opts   Options
	logger *slog.Logger
}

func NewCacheInvalidator(source MessageSource, inbox Inbox, cache CacheDeleter, opts Options, logger *slog.Logger) *CacheInvalidator {
	if opts.Name == "" {
		opts.Name = "item-cache-invalidator"
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = exponentialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{source: source, inbox: inbox, cache: cache, opts: opts, logger: logger}
}

// Run consumes until ctx is cancelled. A message is committed once handled,
// or dropped and committed after MaxRetries failed attempts.
func (c *CacheInvalidator) Run(ctx context.Context) error {
	c.logger.Info("cache invalidator started", "consumer", c.opts.Name)

	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		if !c.handleWithRetry(ctx, msg) {
			return nil
		}

		if err := c.source.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit kafka message", "error", err)
		}
	}
}

// handleWithRetry reports false only when ctx ended during a backoff.
func (c *CacheInvalidator) handleWithRetry(ctx context.Context, msg kafka.Message) bool {
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.opts.Backoff(attempt)
			c.logger.Info("retry attempt", "attempt", attempt, "max", c.opts.MaxRetries, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return false
			}
		}

		err := c.Handle(ctx, msg.Value)
		if err == nil {
			return true
		}
		c.logger.Error("processing failed", "attempt", attempt, "error", err)
	}

	eventsHandled.WithLabelValues("dropped").Inc()
	c.logger.Error("DLQ: dropping message after retries", "retries", c.opts.MaxRetries, "offset", msg.Offset)
	return true
}

// Handle applies one raw Kafka value. Foreign or corrupt envelopes are skipped.
func (c *CacheInvalidator) Handle(ctx context.Context, value []byte) error {
	started := time.Now()

	var ev domainEvent.Message
	if err := json.Unmarshal(value, &ev); err != nil {
		c.logger.Error("failed to unmarshal event envelope", "error", err)
		eventsHandled.WithLabelValues("skipped").Inc()
		return nil
	}

	switch ev.Type {
	case outbox.TypeItemUpdated, outbox.TypeItemDeleted, outbox.TypeItemProcessed:
	default:
		eventsHandled.WithLabelValues("skipped").Inc()
		return nil
	}

	tx, err := c.inbox.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	isNew, err := c.inbox.SaveIfNotExists(ctx, tx, inbox.Event{
		Consumer:    c.opts.Name,
		EventID:     ev.ID,
		EventType:   ev.Type,
		AggregateID: ev.AggregateID,
	})
	if err != nil {
		return fmt.Errorf("inbox save: %w", err)
	}

	if isNew {
		if err := c.cache.Delete(ctx, ev.AggregateID); err != nil {
			return fmt.Errorf("invalidate item %s: %w", ev.AggregateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	if !isNew {
		eventsHandled.WithLabelValues("duplicate").Inc()
		return nil
	}

	handleDuration.Observe(time.Since(started).Seconds())
	eventsHandled.WithLabelValues("invalidated").Inc()
	c.logger.Info("item cache invalidated", "type", ev.Type, "item_id", ev.AggregateID, "event_id", ev.ID)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
