// Package workerpool provides a fixed-size pool of long-lived goroutines.
// A Pool is created once at service startup, shared by every caller and
// released with Close at shutdown.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("worker pool closed")

type Pool struct {
	tasks  chan func()
	quit   chan struct{}
	logger *slog.Logger

	size      int
	wg        sync.WaitGroup
	closeOnce sync.Once

	// mu guards closed so Submit never races with Close.
	mu     sync.RWMutex
	closed bool
}

// New starts size workers. Sizes below one are raised to one.
func New(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		tasks:  make(chan func()),
		quit:   make(chan struct{}),
		logger: logger,
		size:   size,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work(i)
	}

	return p
}

func (p *Pool) Size() int {
	return p.size
}

// Submit blocks until a worker accepts task, ctx ends or the pool is closed.
// A nil error means task will run exactly once.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrClosed
	}
}

// Close stops accepting work and waits for running tasks to return.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.wg.Wait()
	})
}

func (p *Pool) work(index int) {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.tasks:
			p.run(index, task)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) run(index int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				"worker", index,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	task()
}
