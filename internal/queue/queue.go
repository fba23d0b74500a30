// Package queue serializes work on one logical execution context.
//
// Every operation touching the primary store runs on the single worker
// goroutine of a Queue; callers block until their work completes.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("queue: closed")

type job struct {
	ctx    context.Context //nolint:containedctx // Carried to the worker with the work
	fn     func(ctx context.Context) error
	result chan error
}

// inQueueKey marks contexts of work already running on a queue.
type inQueueKey struct{ q *Queue }

// Queue is a single-worker command queue.
type Queue struct {
	jobs   chan job
	done   chan struct{}
	logger *slog.Logger
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// New starts a queue worker.
func New(logger *slog.Logger) *Queue {
	q := &Queue{
		jobs:   make(chan job),
		done:   make(chan struct{}),
		logger: logger,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case j := <-q.jobs:
			j.result <- q.run(j)
		case <-q.done:
			return
		}
	}
}

func (q *Queue) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queued work panicked", "panic", r)
			err = fmt.Errorf("queue: work panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}

// Do runs fn on the queue worker and waits for it.
//
// When called from inside work already running on this queue (ctx derives
// from the work's context), fn runs inline. If ctx is done before the worker
// picks fn up, Do returns ctx.Err() without running it; once started, fn
// always runs to completion.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inQueueKey{q}) != nil {
		return fn(ctx)
	}

	j := job{
		ctx:    context.WithValue(ctx, inQueueKey{q}, true),
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	}
	return <-j.result
}

// Run runs fn on the queue worker and returns its result.
func Run[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Close stops the worker after the running work, if any, completes.
// Work submitted afterwards fails with ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}
