package usecase

import (
	"context"
	"fmt"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"
)

type DeleteItem struct {
	txManager  Transactor
	itemRepo   ItemRepository
	outboxRepo OutboxWriter
	cache      ItemCache
}

func NewDeleteItem(txManager Transactor, itemRepo ItemRepository, outboxRepo OutboxWriter, cache ItemCache) *DeleteItem {
	return &DeleteItem{
		txManager:  txManager,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
		cache:      cache,
	}
}

func (uc *DeleteItem) Execute(ctx context.Context, id string) error {
	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.itemRepo.Delete(txCtx, id); err != nil {
			return err
		}

		ev, err := newItemEvent(outbox.TypeItemDeleted, &item.Item{ID: id})
		if err != nil {
			return err
		}
		return uc.outboxRepo.Create(txCtx, ev)
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	invalidate(ctx, uc.cache, id)
	return nil
}
