package usecase

import (
	"context"
	"fmt"

	"itemservice/internal/domain/item"
)

type ListItems struct {
	itemRepo ItemRepository
}

func NewListItems(itemRepo ItemRepository) *ListItems {
	return &ListItems{itemRepo: itemRepo}
}

func (uc *ListItems) Execute(ctx context.Context) ([]*item.Item, error) {
	items, err := uc.itemRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}
