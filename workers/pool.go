// Package workers bounds how many slow outbound operations (deliverability
// probes) run at once. Callers submit a task and wait on its Future with
// their own context, so a saturated pool never pins a request past its
// deadline.
package workers

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pool runs tasks with bounded concurrency. Tasks beyond the limit wait for
// a free slot in their own goroutine; Submit never blocks the caller.
type Pool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
	running atomic.Int64
}

// NewPool creates a pool that runs at most workers tasks concurrently.
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sem:    make(chan struct{}, workers),
		logger: logger,
	}
}

// Running returns the number of currently executing tasks.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Submit schedules task and returns a Future for its result. The task
// receives ctx; if ctx is done before a slot frees up the task never runs
// and the Future resolves with ctx.Err().
func Submit[T any](ctx context.Context, p *Pool, task func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer close(f.done)

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		}
		p.running.Add(1)
		defer func() {
			<-p.sem
			p.running.Add(-1)
			if r := recover(); r != nil {
				p.logger.Error("task panicked", zap.Any("panic", r))
				f.err = &PanicError{Value: r}
			}
		}()

		f.value, f.err = task(ctx)
	}()

	return f
}

// Future represents the result of a submitted task.
type Future[T any] struct {
	value T
	err   error
	done  chan struct{}
}

// Await blocks until the task completes or ctx is done, whichever comes
// first. On ctx expiry it returns the zero value and ctx.Err(); the task
// keeps running in the background and its result is discarded.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed when the task completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// PanicError is returned by a Future whose task panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "workers: task panicked"
}
