package outbox

import (
	"context"
	"time"
)

// Event types written by the item service.
const (
	TypeItemCreated   = "ItemCreated"
	TypeItemUpdated   = "ItemUpdated"
	TypeItemDeleted   = "ItemDeleted"
	TypeItemProcessed = "ItemProcessed"
)

const (
	StatusNew        = "new"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
)

// Event is a pending integration event stored next to the item it describes.
// AggregateID always holds the item id.
type Event struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	Payload     []byte    `json:"payload"`
	Status      string    `json:"status"`
	Producer    string    `json:"producer"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, event *Event) error
	FetchBatch(ctx context.Context, limit int) ([]*Event, error)
	MarkProcessed(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string) error
}
