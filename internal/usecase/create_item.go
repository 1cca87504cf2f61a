package usecase

import (
	"context"
	"fmt"
	"time"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"

	"github.com/google/uuid"
)

type ItemParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
}

func (p ItemParams) status() item.Status {
	if p.Status == "" {
		return item.StatusNew
	}
	return item.Status(p.Status)
}

type CreateItem struct {
	txManager  Transactor
	itemRepo   ItemRepository
	outboxRepo OutboxWriter
}

func NewCreateItem(txManager Transactor, itemRepo ItemRepository, outboxRepo OutboxWriter) *CreateItem {
	return &CreateItem{
		txManager:  txManager,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
	}
}

func (uc *CreateItem) Execute(ctx context.Context, params ItemParams) (*item.Item, error) {
	now := time.Now().UTC()
	newItem := &item.Item{
		ID:          uuid.New().String(),
		Name:        params.Name,
		Description: params.Description,
		Status:      params.status(),
		Email:       params.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var saved *item.Item
	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		saved, err = uc.itemRepo.Upsert(txCtx, newItem)
		if err != nil {
			return err
		}

		ev, err := newItemEvent(outbox.TypeItemCreated, saved)
		if err != nil {
			return err
		}
		return uc.outboxRepo.Create(txCtx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return saved, nil
}
