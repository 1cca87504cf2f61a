package usecase

import (
	"context"
	"fmt"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"
)

type UpdateItem struct {
	txManager  Transactor
	itemRepo   ItemRepository
	outboxRepo OutboxWriter
	cache      ItemCache
}

func NewUpdateItem(txManager Transactor, itemRepo ItemRepository, outboxRepo OutboxWriter, cache ItemCache) *UpdateItem {
	return &UpdateItem{
		txManager:  txManager,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
		cache:      cache,
	}
}

// Execute replaces every mutable field of an existing item. It returns
// item.ErrNotFound when id does not exist.
func (uc *UpdateItem) Execute(ctx context.Context, id string, params ItemParams) (*item.Item, error) {
	var saved *item.Item
	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		saved, err = uc.itemRepo.Update(txCtx, &item.Item{
			ID:          id,
			Name:        params.Name,
			Description: params.Description,
			Status:      params.status(),
			Email:       params.Email,
		})
		if err != nil {
			return err
		}

		ev, err := newItemEvent(outbox.TypeItemUpdated, saved)
		if err != nil {
			return err
		}
		return uc.outboxRepo.Create(txCtx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	invalidate(ctx, uc.cache, id)
	return saved, nil
}
