package postgres

import (
	"context"
	"fmt"

	"itemservice/internal/domain/inbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InboxRepository struct {
	pool *pgxpool.Pool
}

func NewInboxRepository(pool *pgxpool.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

// SaveIfNotExists returns true if the event was saved (is new), false if the
// consumer already handled it.
func (r *InboxRepository) SaveIfNotExists(ctx context.Context, tx pgx.Tx, ev inbox.Event) (bool, error) {
	const query = `
		INSERT INTO inbox_events (consumer, event_id, event_type, aggregate_id, processed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (consumer, event_id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, ev.Consumer, ev.EventID, ev.EventType, nullIfEmpty(ev.AggregateID))
	if err != nil {
		return false, fmt.Errorf("insert inbox event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Begin opens a transaction for SaveIfNotExists and the work it guards.
func (r *InboxRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
