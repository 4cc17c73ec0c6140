// Package worker runs request handlers on a fixed number of goroutines behind a bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the queue has no free slot.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("worker pool is stopped")
)

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Pool executes submitted jobs on a fixed set of workers.
type Pool struct {
	jobs    chan *job
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	logger  *zap.Logger
}

// NewPool starts workers goroutines fed by a queue of queueSize pending jobs.
func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		jobs:   make(chan *job, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case j := <-p.jobs:
			j.done <- p.execute(j)
		}
	}
}

func (p *Pool) execute(j *job) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panicked", zap.Any("panic", r))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}

// Submit queues fn and waits for it to finish or for ctx to end. It never blocks on a full
// queue: ErrQueueFull is returned immediately. A job whose ctx ends while still queued is
// skipped by the worker.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return ErrStopped
	}
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return ErrQueueFull
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting jobs and waits for running jobs to return. Jobs still queued fail
// with ErrStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
	for {
		select {
		case j := <-p.jobs:
			j.done <- ErrStopped
		default:
			return
		}
	}
}
