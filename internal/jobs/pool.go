package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

var (
	ErrQueueFull   = errors.New("jobs: queue is full")
	ErrPoolStopped = errors.New("jobs: pool is stopped")
	ErrTaskPanic   = errors.New("jobs: task panicked")
)

// Task is a unit of background work. It receives the pool context for
// Submit and the caller context for SubmitWait.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers int
	queue   chan func()
	logger  interfaces.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queueSize int, logger interfaces.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = logging.NoOp()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		queue:   make(chan func(), queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case run, ok := <-p.queue:
			if !ok {
				return
			}
			run()
		}
	}
}

// Submit enqueues task without waiting for it. Failures are logged.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return nil
	}

	run := func() {
		if err := p.safeRun(p.ctx, task); err != nil {
			p.logger.Error("jobs.task.failed", "error", err)
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.queue <- run:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait enqueues task and blocks until it finishes or ctx is done.
// Enqueueing waits for queue space.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return nil
	}

	done := make(chan error, 1)
	run := func() {
		done <- p.safeRun(ctx, task)
	}

	if err := p.enqueue(ctx, run); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

func (p *Pool) enqueue(ctx context.Context, run func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.queue <- run:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

func (p *Pool) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("jobs.task.panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task(ctx)
}

// Stop discards queued tasks, cancels running ones and waits for workers.
func (p *Pool) Stop() {
	p.cancel()
	if !p.markClosed() {
		return
	}
	for {
		select {
		case <-p.queue:
		default:
			p.wg.Wait()
			return
		}
	}
}

// StopWait lets queued tasks finish before returning.
func (p *Pool) StopWait() {
	if !p.markClosed() {
		return
	}
	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	return true
}

func (p *Pool) Running() bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
		return true
	}
}

func (p *Pool) Workers() int { return p.workers }
