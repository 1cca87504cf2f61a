package usecase

import (
	"context"
	"fmt"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"
	"itemservice/internal/processing"
)

// ProcessingStore is the processor's view of storage. Every save also queues
// an ItemProcessed event in the same transaction.
type ProcessingStore struct {
	txManager  Transactor
	itemRepo   ItemRepository
	outboxRepo OutboxWriter
	cache      ItemCache
}

var _ processing.ItemStore = (*ProcessingStore)(nil)

func NewProcessingStore(txManager Transactor, itemRepo ItemRepository, outboxRepo OutboxWriter, cache ItemCache) *ProcessingStore {
	return &ProcessingStore{
		txManager:  txManager,
		itemRepo:   itemRepo,
		outboxRepo: outboxRepo,
		cache:      cache,
	}
}

func (s *ProcessingStore) ListIDs(ctx context.Context) ([]string, error) {
	return s.itemRepo.ListIDs(ctx)
}

// GetByID always reads the database so the processor never works from a
// stale cached copy.
func (s *ProcessingStore) GetByID(ctx context.Context, id string) (*item.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

// Upsert persists only the status the processor set. An item deleted since it
// was fetched is reported as item.ErrNotFound and is not recreated; other
// columns keep whatever concurrent writers stored.
func (s *ProcessingStore) Upsert(ctx context.Context, it *item.Item) (*item.Item, error) {
	var saved *item.Item
	err := s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		saved, err = s.itemRepo.UpdateStatus(txCtx, it.ID, it.Status)
		if err != nil {
			return err
		}

		ev, err := newItemEvent(outbox.TypeItemProcessed, saved)
		if err != nil {
			return err
		}
		return s.outboxRepo.Create(txCtx, ev)
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.cache, it.ID)
	return saved, nil
}

type BatchProcessor interface {
	ProcessAll(ctx context.Context) (*processing.Result, error)
}

type ProcessItems struct {
	processor BatchProcessor
}

func NewProcessItems(processor BatchProcessor) *ProcessItems {
	return &ProcessItems{processor: processor}
}

func (uc *ProcessItems) Execute(ctx context.Context) (*processing.Result, error) {
	res, err := uc.processor.ProcessAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("process items: %w", err)
	}
	return res, nil
}
