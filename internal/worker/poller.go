package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	domainEvent "itemservice/internal/domain/event"
	"itemservice/internal/domain/outbox"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_events_published_total",
		Help: "The total number of events published to Kafka",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
)

const sendTimeout = 5 * time.Second

type Publisher interface {
	SendMessage(ctx context.Context, key, value []byte) error
}

type OutboxPoller struct {
	outboxRepo outbox.Repository
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewOutboxPoller(outboxRepo outbox.Repository, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
		}
	}
}

func (p *OutboxPoller) processBatch(ctx context.Context) error {
	events, err := p.outboxRepo.FetchBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	var processedIDs []string
	var failedIDs []string

	for _, e := range events {
		msg := domainEvent.Message{
			ID:          e.ID,
			Type:        e.EventType,
			AggregateID: e.AggregateID,
			Producer:    e.Producer,
			OccurredAt:  e.CreatedAt.UTC(),
			Payload:     e.Payload,
		}

		value, err := json.Marshal(msg)
		if err != nil {
			p.logger.Error("failed to marshal event", "event_id", e.ID, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err = p.publisher.SendMessage(sendCtx, []byte(e.AggregateID), value)
		cancel()

		if err != nil {
			p.logger.Error("failed to send event to kafka", "event_id", e.ID, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		eventsPublished.Inc()
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) > 0 {
		if err := p.outboxRepo.MarkProcessed(ctx, processedIDs); err != nil {
			return err
		}
		p.logger.Info("published outbox events", "count", len(processedIDs))
	}

	if len(failedIDs) > 0 {
		if err := p.outboxRepo.MarkFailed(ctx, failedIDs); err != nil {
			p.logger.Error("failed to mark events as failed", "error", err)
		}
	}

	return nil
}
