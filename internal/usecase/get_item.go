package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"itemservice/internal/domain/item"
)

type GetItem struct {
	cache    ItemCache
	itemRepo ItemRepository
}

func NewGetItem(cache ItemCache, itemRepo ItemRepository) *GetItem {
	return &GetItem{
		cache:    cache,
		itemRepo: itemRepo,
	}
}

// Execute reads through the cache. A missing item yields an error wrapping
// item.ErrNotFound.
func (uc *GetItem) Execute(ctx context.Context, id string) (*item.Item, error) {
	if uc.cache != nil {
		if cached, err := uc.cache.Get(ctx, id); err == nil {
			return cached, nil
		}
	}

	it, err := uc.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, it); err != nil {
			slog.WarnContext(ctx, "failed to cache item", "item_id", id, "error", err)
		}
	}

	return it, nil
}
