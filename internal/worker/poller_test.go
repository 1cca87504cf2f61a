package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domainEvent "itemservice/internal/domain/event"
	"itemservice/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []*outbox.Event
	processed []string
	failed    []string
	fetchErr  error
}

func (f *fakeOutbox) Create(ctx context.Context, e *outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, e)
	return nil
}

func (f *fakeOutbox) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	n := min(limit, len(f.pending))
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	return batch, nil
}

func (f *fakeOutbox) MarkProcessed(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, ids...)
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, ids...)
	return nil
}

type sent struct {
	key   string
	value []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []sent
	failOn map[string]bool
}

func (p *fakePublisher) SendMessage(ctx context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[string(key)] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sent{key: string(key), value: value})
	return nil
}

func event(id, aggregate string) *outbox.Event {
	return &outbox.Event{
		ID:          id,
		EventType:   outbox.TypeItemProcessed,
		AggregateID: aggregate,
		Payload:     []byte(`{"id":"` + aggregate + `"}`),
		Status:      outbox.StatusProcessing,
		Producer:    "item-service",
		CreatedAt:   time.Now(),
	}
}

func TestOutboxPoller_PublishesBatch(t *testing.T) {
	repo := &fakeOutbox{pending: []*outbox.Event{event("e1", "item-1"), event("e2", "item-2")}}
	pub := &fakePublisher{}
	p := NewOutboxPoller(repo, pub, time.Second, 10, nil)

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{"e1", "e2"}, repo.processed)
	assert.Empty(t, repo.failed)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "item-1", pub.sent[0].key)

	var msg domainEvent.Message
	require.NoError(t, json.Unmarshal(pub.sent[0].value, &msg))
	assert.Equal(t, "e1", msg.ID)
	assert.Equal(t, outbox.TypeItemProcessed, msg.Type)
	assert.JSONEq(t, `{"id":"item-1"}`, string(msg.Payload))
}

func TestOutboxPoller_FailedSendsAreReleased(t *testing.T) {
	repo := &fakeOutbox{pending: []*outbox.Event{event("e1", "item-1"), event("e2", "item-2")}}
	pub := &fakePublisher{failOn: map[string]bool{"item-2": true}}
	p := NewOutboxPoller(repo, pub, time.Second, 10, nil)

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{"e1"}, repo.processed)
	assert.Equal(t, []string{"e2"}, repo.failed)
}

func TestOutboxPoller_RespectsBatchSize(t *testing.T) {
	repo := &fakeOutbox{pending: []*outbox.Event{event("e1", "a"), event("e2", "b"), event("e3", "c")}}
	p := NewOutboxPoller(repo, &fakePublisher{}, time.Second, 2, nil)

	require.NoError(t, p.processBatch(context.Background()))
	assert.Len(t, repo.processed, 2)
	assert.Len(t, repo.pending, 1)
}

func TestOutboxPoller_FetchError(t *testing.T) {
	repo := &fakeOutbox{fetchErr: errors.New("db down")}
	p := NewOutboxPoller(repo, &fakePublisher{}, time.Second, 10, nil)

	assert.Error(t, p.processBatch(context.Background()))
}

func TestOutboxPoller_RunStopsOnCancel(t *testing.T) {
	repo := &fakeOutbox{pending: []*outbox.Event{event("e1", "item-1")}}
	p := NewOutboxPoller(repo, &fakePublisher{}, 5*time.Millisecond, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.processed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
