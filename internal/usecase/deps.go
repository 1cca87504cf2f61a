package usecase

import (
	"context"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"
)

const producerName = "item-service"

type Transactor interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type ItemRepository interface {
	ListIDs(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]*item.Item, error)
	GetByID(ctx context.Context, id string) (*item.Item, error)
	Upsert(ctx context.Context, it *item.Item) (*item.Item, error)
	Update(ctx context.Context, it *item.Item) (*item.Item, error)
	UpdateStatus(ctx context.Context, id string, status item.Status) (*item.Item, error)
	Delete(ctx context.Context, id string) error
}

type OutboxWriter interface {
	Create(ctx context.Context, e *outbox.Event) error
}

// ItemCache is optional everywhere it is accepted; nil disables caching.
type ItemCache interface {
	Get(ctx context.Context, id string) (*item.Item, error)
	Set(ctx context.Context, it *item.Item) error
	Delete(ctx context.Context, id string) error
}
