package inbox

import "time"

// Event records that a consumer already handled an event id, so redelivered
// Kafka messages are skipped.
type Event struct {
	Consumer    string    `json:"consumer"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	ProcessedAt time.Time `json:"processed_at"`
}
