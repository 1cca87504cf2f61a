// Package processing implements the batch item processor: every stored item
// is fetched, marked processed and saved back, one unit of work per item,
// on a shared bounded worker pool.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"itemservice/internal/domain/item"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrListIDs means the batch could not start because the id listing failed.
	ErrListIDs = errors.New("list item ids")
	// ErrBatchInterrupted means the batch was abandoned before every unit reported back.
	ErrBatchInterrupted = errors.New("item batch interrupted")
)

var (
	itemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "items_processed_total",
		Help: "The total number of items marked processed",
	})
	itemFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "items_process_failures_total",
		Help: "The total number of items that failed to process",
	})
	batches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "item_batches_total",
		Help: "The total number of batches by outcome",
	}, []string{"outcome"})
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "item_batch_duration_seconds",
		Help:    "Time taken to process one batch of items",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)

type ItemStore interface {
	ListIDs(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*item.Item, error)
	Upsert(ctx context.Context, it *item.Item) (*item.Item, error)
}

// Submitter runs tasks on a bounded set of workers. *workerpool.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, task func()) error
}

// Failure records why one item was left out of a result.
type Failure struct {
	ID  string
	Err error
}

// Result holds the saved items in id listing order. Items that failed are
// absent from Items and listed in Failures instead.
type Result struct {
	Items    []item.Item
	Failures []Failure
}

func (r *Result) Processed() int { return len(r.Items) }
func (r *Result) Failed() int    { return len(r.Failures) }

// outcome is what a single unit reports: exactly one of saved or err is set.
type outcome struct {
	saved *item.Item
	err   error
}

type Option func(*Processor)

// WithBatchTimeout bounds a whole ProcessAll call. Zero disables the deadline.
func WithBatchTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.batchTimeout = d
	}
}

type Processor struct {
	store        ItemStore
	pool         Submitter
	logger       *slog.Logger
	batchTimeout time.Duration
}

func NewProcessor(store ItemStore, pool Submitter, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Processor{
		store:  store,
		pool:   pool,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessAll marks every item currently in the store as processed.
//
// The id set is read once; each id becomes one unit on the pool. ProcessAll
// returns only after every dispatched unit has finished. Per-item failures are
// reported in Result.Failures and never fail the batch. The returned error is
// non-nil only when listing fails (ErrListIDs) or when ctx, the batch timeout
// or pool shutdown stop the batch before all outcomes are in
// (ErrBatchInterrupted); in both cases no result is returned.
func (p *Processor) ProcessAll(ctx context.Context) (*Result, error) {
	started := time.Now()

	if p.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.batchTimeout)
		defer cancel()
	}

	ids, err := p.store.ListIDs(ctx)
	if err != nil {
		batches.WithLabelValues("list_failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrListIDs, err)
	}

	if len(ids) == 0 {
		batches.WithLabelValues("empty").Inc()
		return &Result{Items: []item.Item{}}, nil
	}

	// Each unit owns exactly one slot, so units never share writable state.
	slots := make([]outcome, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		err := p.pool.Submit(ctx, func() {
			defer wg.Done()
			slots[i] = p.processOne(ctx, id)
		})
		if err != nil {
			wg.Done()
			// Units already on the pool still own their slots; let them finish
			// before abandoning the batch.
			wg.Wait()
			batches.WithLabelValues("interrupted").Inc()
			return nil, fmt.Errorf("%w: dispatched %d of %d: %w", ErrBatchInterrupted, i, len(ids), err)
		}
	}

	wg.Wait()

	// Units run with ctx, so an expired ctx means their outcomes cannot be
	// told apart from genuine item failures.
	if err := ctx.Err(); err != nil {
		batches.WithLabelValues("interrupted").Inc()
		return nil, fmt.Errorf("%w: %w", ErrBatchInterrupted, err)
	}

	res := collect(ids, slots)

	itemsProcessed.Add(float64(res.Processed()))
	itemFailures.Add(float64(res.Failed()))
	batches.WithLabelValues("completed").Inc()
	batchDuration.Observe(time.Since(started).Seconds())

	p.logger.InfoContext(ctx, "item batch completed",
		"total", len(ids),
		"processed", res.Processed(),
		"failed", res.Failed(),
		"duration", time.Since(started),
	)

	return res, nil
}

func (p *Processor) processOne(ctx context.Context, id string) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("panic: %v", r)}
		}
		if out.err != nil {
			p.logger.WarnContext(ctx, "failed to process item", "item_id", id, "error", out.err)
		}
	}()

	it, err := p.store.GetByID(ctx, id)
	if err != nil {
		return outcome{err: fmt.Errorf("fetch: %w", err)}
	}
	if it == nil {
		return outcome{err: fmt.Errorf("fetch: %w", item.ErrNotFound)}
	}

	it.MarkProcessed()

	saved, err := p.store.Upsert(ctx, it)
	if err != nil {
		return outcome{err: fmt.Errorf("save: %w", err)}
	}
	if saved == nil {
		saved = it
	}

	return outcome{saved: saved}
}

func collect(ids []string, slots []outcome) *Result {
	res := &Result{Items: make([]item.Item, 0, len(slots))}

	for i, o := range slots {
		if o.err != nil {
			res.Failures = append(res.Failures, Failure{ID: ids[i], Err: o.err})
			continue
		}
		res.Items = append(res.Items, *o.saved)
	}

	return res
}
