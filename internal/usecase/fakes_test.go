package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"itemservice/internal/domain/item"
	"itemservice/internal/domain/outbox"
)

// memStore implements ItemRepository, OutboxWriter and Transactor over maps.
// WithinTransaction restores the previous state when the callback fails.
type memStore struct {
	mu        sync.Mutex
	items     map[string]item.Item
	events    []outbox.Event
	upsertErr error
	outboxErr error
}

func newMemStore(items ...item.Item) *memStore {
	s := &memStore{items: map[string]item.Item{}}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	itemsSnap := make(map[string]item.Item, len(s.items))
	for k, v := range s.items {
		itemsSnap[k] = v
	}
	eventsSnap := append([]outbox.Event(nil), s.events...)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.items = itemsSnap
		s.events = eventsSnap
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) List(ctx context.Context) ([]*item.Item, error) {
	ids, _ := s.ListIDs(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*item.Item, 0, len(ids))
	for _, id := range ids {
		it := s.items[id]
		out = append(out, &it)
	}
	return out, nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, item.ErrNotFound
	}
	return &it, nil
}

func (s *memStore) Upsert(ctx context.Context, it *item.Item) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	saved := *it
	if prev, ok := s.items[it.ID]; ok {
		saved.CreatedAt = prev.CreatedAt
	}
	saved.UpdatedAt = time.Now()
	s.items[it.ID] = saved
	return &saved, nil
}

func (s *memStore) Update(ctx context.Context, it *item.Item) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	prev, ok := s.items[it.ID]
	if !ok {
		return nil, item.ErrNotFound
	}
	prev.Name = it.Name
	prev.Description = it.Description
	prev.Status = it.Status
	prev.Email = it.Email
	prev.UpdatedAt = time.Now()
	s.items[it.ID] = prev
	return &prev, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status item.Status) (*item.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	prev, ok := s.items[id]
	if !ok {
		return nil, item.ErrNotFound
	}
	prev.Status = status
	prev.UpdatedAt = time.Now()
	s.items[id] = prev
	return &prev, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return item.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore) Create(ctx context.Context, e *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outboxErr != nil {
		return s.outboxErr
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *memStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// racingStore runs afterGet once a GetByID has returned, standing in for a
// writer that commits between a read and the following save.
type racingStore struct {
	*memStore
	afterGet func(id string)
}

func (s *racingStore) GetByID(ctx context.Context, id string) (*item.Item, error) {
	it, err := s.memStore.GetByID(ctx, id)
	if s.afterGet != nil {
		s.afterGet(id)
	}
	return it, err
}

func (s *racingStore) exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok
}

var errCacheMiss = errors.New("miss")

type memCache struct {
	mu      sync.Mutex
	items   map[string]item.Item
	gets    int
	deletes []string
}

func newMemCache() *memCache {
	return &memCache{items: map[string]item.Item{}}
}

func (c *memCache) Get(ctx context.Context, id string) (*item.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	it, ok := c.items[id]
	if !ok {
		return nil, errCacheMiss
	}
	return &it, nil
}

func (c *memCache) Set(ctx context.Context, it *item.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.ID] = *it
	return nil
}

func (c *memCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.deletes = append(c.deletes, id)
	return nil
}
