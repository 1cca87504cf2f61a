package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"itemservice/internal/domain/inbox"
	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dsnEnv points the repository tests at a disposable database. Each test gets
// its own schema, dropped on cleanup.
const dsnEnv = "ITEMS_TEST_POSTGRES_DSN"

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	schemaName := "items_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schemaName)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schemaName+" CASCADE")
		admin.Close()
	})

	return pool
}

func seedItem(t *testing.T, repo *ItemRepository, id string, createdAt time.Time) *item.Item {
	t.Helper()
	it, err := repo.Upsert(context.Background(), &item.Item{
		ID:        id,
		Name:      "item " + id,
		Status:    item.StatusNew,
		Email:     id + "@example.com",
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return it
}

func TestItemRepository_ListOrder(t *testing.T) {
	repo := NewItemRepository(newTestPool(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seedItem(t, repo, "c", base)
	seedItem(t, repo, "a", base.Add(time.Minute))
	seedItem(t, repo, "b", base)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids)

	items, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[2].ID)
}

func TestItemRepository_UpsertKeepsCreatedAt(t *testing.T) {
	repo := NewItemRepository(newTestPool(t))
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedItem(t, repo, "1", created)

	saved, err := repo.Upsert(context.Background(), &item.Item{
		ID: "1", Name: "renamed", Status: item.StatusPending, Email: "x@example.com",
		CreatedAt: created.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", saved.Name)
	assert.True(t, saved.CreatedAt.Equal(created), "created_at changed to %v", saved.CreatedAt)
}

func TestItemRepository_UpdateNeverInserts(t *testing.T) {
	repo := NewItemRepository(newTestPool(t))
	ctx := context.Background()

	_, err := repo.Update(ctx, &item.Item{ID: "ghost", Name: "x", Status: item.StatusNew, Email: "x@example.com"})
	assert.ErrorIs(t, err, item.ErrNotFound)

	_, err = repo.UpdateStatus(ctx, "ghost", item.StatusProcessed)
	assert.ErrorIs(t, err, item.ErrNotFound)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, item.ErrNotFound)
}

func TestItemRepository_UpdateStatusOnlyTouchesStatus(t *testing.T) {
	repo := NewItemRepository(newTestPool(t))
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedItem(t, repo, "1", created)

	_, err := repo.Update(ctx, &item.Item{ID: "1", Name: "edited", Description: "d", Status: item.StatusPending, Email: "e@example.com"})
	require.NoError(t, err)

	saved, err := repo.UpdateStatus(ctx, "1", item.StatusProcessed)
	require.NoError(t, err)

	assert.Equal(t, item.StatusProcessed, saved.Status)
	assert.Equal(t, "edited", saved.Name)
	assert.Equal(t, "d", saved.Description)
	assert.Equal(t, "e@example.com", saved.Email)
	assert.True(t, saved.CreatedAt.Equal(created))
}

func TestItemRepository_Delete(t *testing.T) {
	repo := NewItemRepository(newTestPool(t))
	ctx := context.Background()
	seedItem(t, repo, "1", time.Now())

	require.NoError(t, repo.Delete(ctx, "1"))
	assert.ErrorIs(t, repo.Delete(ctx, "1"), item.ErrNotFound)
}

func TestTxManager_RollbackDiscardsWrites(t *testing.T) {
	pool := newTestPool(t)
	repo := NewItemRepository(pool)
	tm := NewTxManager(pool)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := tm.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.Upsert(txCtx, &item.Item{ID: "1", Name: "n", Status: item.StatusNew, Email: "n@example.com"}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = repo.GetByID(ctx, "1")
	assert.ErrorIs(t, err, item.ErrNotFound)
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	repo := NewOutboxRepository(newTestPool(t))
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, repo.Create(ctx, &outbox.Event{
			ID: id, EventType: outbox.TypeItemProcessed, AggregateID: "item-" + id,
			Payload: []byte(`{}`), Status: outbox.StatusNew, CreatedAt: time.Now(),
		}))
		time.Sleep(time.Millisecond)
	}

	claimed, err := repo.FetchBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	again, err := repo.FetchBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1, "claimed rows are not handed out twice")

	require.NoError(t, repo.MarkProcessed(ctx, []string{claimed[0].ID}))
	require.NoError(t, repo.MarkFailed(ctx, []string{claimed[1].ID}))

	n, err := repo.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "unknown", recent[0].Producer)
}

func TestInboxRepository_SaveIfNotExists(t *testing.T) {
	repo := NewInboxRepository(newTestPool(t))
	ctx := context.Background()
	ev := inbox.Event{Consumer: "c", EventID: "e1", EventType: outbox.TypeItemDeleted, AggregateID: "1"}

	save := func() bool {
		tx, err := repo.Begin(ctx)
		require.NoError(t, err)
		isNew, err := repo.SaveIfNotExists(ctx, tx, ev)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
		return isNew
	}

	assert.True(t, save())
	assert.False(t, save())
}

func TestConfig_DSN(t *testing.T) {
	dsn := Config{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "items"}.DSN()
	assert.Equal(t, "postgres://u:p%40ss@db:5432/items?sslmode=disable", dsn)
}
