// Package queue provides bounded-parallelism admission control for outbound
// work such as search requests and generation calls.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrNotAdmitted wraps the submitter's context error for a task withdrawn
// before it got a slot.
var ErrNotAdmitted = errors.New("task not admitted")

// Func is a unit of queued work. The context it receives carries the
// submitter's values but is never cancelled by the queue or the submitter.
type Func func(ctx context.Context) (any, error)

// Queue limits how many submitted tasks run at once. Tasks beyond the limit
// wait for a slot; admission order is not guaranteed to be FIFO.
type Queue struct {
	name    string
	limit   int
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics

	inflight atomic.Int64
	waiting  atomic.Int64
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithRegisterer exports the queue gauges and counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(q *Queue) {
		if reg != nil {
			q.metrics = newMetrics(reg)
		}
	}
}

// New creates a queue that runs at most limit tasks concurrently. A limit of
// zero or less yields an unbounded queue.
func New(name string, limit int, opts ...Option) *Queue {
	q := &Queue{name: name, logger: zap.NewNop()}
	if limit > 0 {
		q.limit = limit
		q.sem = semaphore.NewWeighted(int64(limit))
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Unbounded creates a queue without a concurrency cap, mainly for tests.
func Unbounded(name string, opts ...Option) *Queue {
	return New(name, 0, opts...)
}

// Name returns the queue name used in logs and metric labels.
func (q *Queue) Name() string { return q.name }

// Limit returns the concurrency cap, or 0 when unbounded.
func (q *Queue) Limit() int { return q.limit }

// InFlight reports how many tasks are currently running.
func (q *Queue) InFlight() int { return int(q.inflight.Load()) }

// Waiting reports how many submitted tasks have not been admitted yet.
func (q *Queue) Waiting() int { return int(q.waiting.Load()) }

// Submit enqueues fn and returns immediately. While the task waits for a
// slot, cancelling ctx withdraws it and fn never runs. Once admitted, fn
// always runs to completion.
func (q *Queue) Submit(ctx context.Context, fn Func) *Task {
	t := &Task{done: make(chan struct{})}
	q.waiting.Add(1)
	q.metrics.waiting(q.name, 1)

	go func() {
		defer close(t.done)

		err := q.acquire(ctx)
		q.waiting.Add(-1)
		q.metrics.waiting(q.name, -1)
		if err != nil {
			t.err = fmt.Errorf("queue %s: %w: %w", q.name, ErrNotAdmitted, err)
			q.metrics.finished(q.name, "withdrawn")
			return
		}
		defer q.release()

		q.inflight.Add(1)
		q.metrics.inflight(q.name, 1)
		defer func() {
			q.inflight.Add(-1)
			q.metrics.inflight(q.name, -1)
		}()

		t.value, t.err = q.run(context.WithoutCancel(ctx), fn)
		if t.err != nil {
			q.logger.Debug("queued task failed", zap.String("queue", q.name), zap.Error(t.err))
			q.metrics.finished(q.name, "error")
			return
		}
		q.metrics.finished(q.name, "ok")
	}()
	return t
}

func (q *Queue) acquire(ctx context.Context) error {
	if q.sem == nil {
		return nil
	}
	return q.sem.Acquire(ctx, 1)
}

func (q *Queue) release() {
	if q.sem != nil {
		q.sem.Release(1)
	}
}

func (q *Queue) run(ctx context.Context, fn Func) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Queue: q.name, Value: r}
		}
	}()
	return fn(ctx)
}

// Task is the handle of a submitted Func.
type Task struct {
	done  chan struct{}
	value any
	err   error
}

// Done is closed once the task finished or was withdrawn.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finished and returns its result. Cancelling ctx
// abandons the wait only; the task keeps running.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.value, t.err
	default:
	}
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits fn to q and waits for its typed result.
func Do[T any](ctx context.Context, q *Queue, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}).Wait(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("queue %s: unexpected result type %T", q.name, v)
	}
	return out, nil
}

// PanicError reports a task that panicked instead of returning.
type PanicError struct {
	Queue string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("queue %s: task panicked: %v", e.Queue, e.Value)
}
