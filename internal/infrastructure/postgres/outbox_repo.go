package postgres

import (
	"context"
	"fmt"

	"itemservice/internal/domain/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `id, event_type, aggregate_id, payload, status, producer, created_at, updated_at`

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) Create(ctx context.Context, e *outbox.Event) error {
	const sql = `
		INSERT INTO outbox (id, event_type, aggregate_id, payload, status, producer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := executor(ctx, r.pool).Exec(ctx, sql,
		e.ID, e.EventType, e.AggregateID, e.Payload, e.Status, defaultIfEmpty(e.Producer, "unknown"), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

// FetchBatch claims up to limit new events by moving them to processing.
// Concurrent pollers never claim the same row.
func (r *OutboxRepository) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	const sql = `
		WITH claimed_events AS (
			SELECT id
			FROM outbox
			WHERE status = 'new'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (SELECT id FROM claimed_events)
		RETURNING ` + outboxColumns

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE outbox
		SET status = 'processed', updated_at = NOW()
		WHERE id = ANY($1)
	`
	if _, err := r.pool.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MarkFailed releases events back to new so the next poll retries them.
func (r *OutboxRepository) MarkFailed(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE outbox
		SET status = 'new', updated_at = NOW()
		WHERE id = ANY($1)
	`
	if _, err := r.pool.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetProcessing returns events stuck in processing, e.g. after a poller
// crash, to new.
func (r *OutboxRepository) ResetProcessing(ctx context.Context) (int64, error) {
	const sql = `UPDATE outbox SET status = 'new', updated_at = NOW() WHERE status = 'processing'`

	tag, err := r.pool.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("reset processing events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *OutboxRepository) ListRecent(ctx context.Context, limit int) ([]*outbox.Event, error) {
	const sql = `SELECT ` + outboxColumns + ` FROM outbox ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent outbox events: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, fmt.Errorf("scan outbox event: %w", err)
	}

	return events, nil
}

func scanOutboxEvent(row pgx.CollectableRow) (*outbox.Event, error) {
	e := &outbox.Event{}
	err := row.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.Payload, &e.Status, &e.Producer, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func defaultIfEmpty(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}
