// Package dispatch runs fire-and-forget work on a fixed set of goroutines.
//
// A Pool is created once and shared; submitting never blocks the caller.
// When the queue is full the task is dropped and counted rather than
// waiting for a free slot.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmurray2011/watchman/internal/logging"
)

// Configuration defaults
const (
	// DefaultWorkers is the number of goroutines draining the queue
	DefaultWorkers = 4

	// DefaultQueueSize is how many tasks may wait for a worker
	DefaultQueueSize = 1024

	// DefaultTaskTimeout bounds a single task so a hung request cannot pin a worker
	DefaultTaskTimeout = 10 * time.Second
)

var (
	// ErrQueueFull is returned by TrySubmit when no queue slot is free.
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrClosed is returned by TrySubmit after Close has been called.
	ErrClosed = errors.New("dispatch pool is closed")
)

// Task is a unit of background work. The context carries the task timeout
// and is cancelled if Close gives up waiting.
type Task func(ctx context.Context)

// Option configures a Pool.
type Option func(*Pool)

// WithTaskTimeout sets the per-task timeout. Zero disables it.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.timeout = d
	}
}

// WithLogger sets the logger used to report recovered task panics.
func WithLogger(l logging.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pool is a bounded worker pool.
type Pool struct {
	tasks   chan Task
	timeout time.Duration
	logger  logging.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// mu guards closed and every send on tasks
	mu     sync.RWMutex
	closed bool

	pending atomic.Int64
	dropped atomic.Int64
}

// New starts a pool with the given number of workers and queue capacity.
func New(workers, queueSize int, opts ...Option) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("dispatch pool needs at least one worker, got %d", workers)
	}
	if queueSize < 0 {
		return nil, fmt.Errorf("dispatch queue size must not be negative, got %d", queueSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:   make(chan Task, queueSize),
		timeout: DefaultTaskTimeout,
		logger:  logging.Default(),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p, nil
}

// TrySubmit queues task without blocking. It returns ErrQueueFull when the
// queue has no free slot and ErrClosed once the pool is shutting down.
func (p *Pool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return ErrClosed
	}

	// Count before the send so a fast worker never drives pending negative
	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return nil
	default:
		p.pending.Add(-1)
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Pending returns the number of tasks queued or running.
func (p *Pool) Pending() int64 {
	return p.pending.Load()
}

// Dropped returns the number of tasks rejected by TrySubmit.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx
// ends first, running tasks are cancelled and ctx.Err() is returned.
// Calling Close more than once is safe.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer p.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dispatch task panicked: %v", r)
		}
	}()

	ctx := p.baseCtx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	task(ctx)
}
