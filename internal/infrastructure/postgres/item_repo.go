package postgres

import (
	"context"
	"errors"
	"fmt"

	"itemservice/internal/domain/item"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `id, name, description, status, email, created_at, updated_at`

type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func (r *ItemRepository) ListIDs(ctx context.Context) ([]string, error) {
	const sql = `SELECT id FROM items ORDER BY created_at ASC, id ASC`

	rows, err := executor(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query item ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan item ids: %w", err)
	}

	return ids, nil
}

func (r *ItemRepository) List(ctx context.Context) ([]*item.Item, error) {
	const sql = `SELECT ` + itemColumns + ` FROM items ORDER BY created_at ASC, id ASC`

	rows, err := executor(ctx, r.pool).Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]*item.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*item.Item, error) {
	const sql = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	it, err := scanItem(executor(ctx, r.pool).QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("get item by id: %w", err)
	}

	return it, nil
}

// Upsert inserts the item or overwrites every mutable column of an existing
// row. id and created_at are never changed by an update.
func (r *ItemRepository) Upsert(ctx context.Context, it *item.Item) (*item.Item, error) {
	const sql = `
		INSERT INTO items (id, name, description, status, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			status      = EXCLUDED.status,
			email       = EXCLUDED.email,
			updated_at  = NOW()
		RETURNING ` + itemColumns

	var createdAt any
	if !it.CreatedAt.IsZero() {
		createdAt = it.CreatedAt
	}

	saved, err := scanItem(executor(ctx, r.pool).QueryRow(ctx, sql,
		it.ID, it.Name, it.Description, string(it.Status), it.Email, createdAt))
	if err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}

	return saved, nil
}

// Update overwrites the mutable columns of an existing row and never inserts.
// A missing id yields item.ErrNotFound.
func (r *ItemRepository) Update(ctx context.Context, it *item.Item) (*item.Item, error) {
	const sql = `
		UPDATE items SET
			name        = $2,
			description = $3,
			status      = $4,
			email       = $5,
			updated_at  = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns

	saved, err := scanItem(executor(ctx, r.pool).QueryRow(ctx, sql,
		it.ID, it.Name, it.Description, string(it.Status), it.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	return saved, nil
}

// UpdateStatus changes only the status of an existing row. A missing id
// yields item.ErrNotFound.
func (r *ItemRepository) UpdateStatus(ctx context.Context, id string, status item.Status) (*item.Item, error) {
	const sql = `UPDATE items SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + itemColumns

	saved, err := scanItem(executor(ctx, r.pool).QueryRow(ctx, sql, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("update item status: %w", err)
	}

	return saved, nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	const sql = `DELETE FROM items WHERE id = $1`

	tag, err := executor(ctx, r.pool).Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return item.ErrNotFound
	}

	return nil
}

func scanItem(row pgx.Row) (*item.Item, error) {
	var it item.Item
	var status string
	if err := row.Scan(&it.ID, &it.Name, &it.Description, &status, &it.Email, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	it.Status = item.Status(status)
	return &it, nil
}
