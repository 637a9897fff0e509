package conduit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool runs submitted work with bounded concurrency.
type Pool struct {
	sem    chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a pool that runs at most concurrency jobs at once. It
// accepts work immediately; Start only rebinds the parent context.
func NewPool(concurrency int, logger *slog.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    make(chan struct{}, concurrency),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start derives the context handed to jobs from ctx. Jobs already running
// keep their previous context.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.stopped = false
}

// Submit schedules fn. It returns ErrPoolStopped after Stop. fn must
// honor ctx cancellation.
func (p *Pool) Submit(fn func(ctx context.Context)) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	ctx := p.ctx
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		// A job cancelled while queued still runs so it can record its
		// outcome; it does not take a slot.
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
		}

		defer func() {
			if r := recover(); r != nil {
				p.logger.ErrorContext(ctx, "pool job panicked", "panic", fmt.Sprint(r))
			}
		}()

		fn(ctx)
	}()

	return nil
}

// Stop refuses new work and waits for in-flight jobs. If ctx ends first
// the jobs' context is cancelled and ctx.Err is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}
