package event

import (
	"encoding/json"
	"time"
)

// Message is the envelope published to Kafka for every outbox event.
// The Kafka key is the item id so all events of one item stay ordered.
type Message struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Producer    string          `json:"producer"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}
