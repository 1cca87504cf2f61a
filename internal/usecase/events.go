package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"

	"github.com/google/uuid"
)

func newItemEvent(eventType string, it *item.Item) (*outbox.Event, error) {
	payload, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}

	return &outbox.Event{
		ID:          uuid.New().String(),
		EventType:   eventType,
		AggregateID: it.ID,
		Payload:     payload,
		Status:      outbox.StatusNew,
		Producer:    producerName,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// invalidate drops the cached copy of id. A failure only costs staleness
// until the TTL expires, so it is logged and not returned.
func invalidate(ctx context.Context, cache ItemCache, id string) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to invalidate cached item", "item_id", id, "error", err)
	}
}
