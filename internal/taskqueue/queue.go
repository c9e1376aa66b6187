package taskqueue

import (
	"context"
	"sync"
	"time"
)

// Option configures a Queue.
type Option func(*options)

type options struct {
	observer Observer
	baseCtx  context.Context
	now      func() time.Time
}

// WithObserver registers lifecycle callbacks, typically metrics.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithBaseContext sets the context handed to every Execute call.
func WithBaseContext(ctx context.Context) Option {
	return func(opts *options) {
		opts.baseCtx = ctx
	}
}

// WithClock overrides the time source used for enqueue and start timestamps.
func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.now = now
	}
}

// SubmitOption configures a single submitted task.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	afterRun func(err error)
}

// AfterRun registers fn to be called once the task's work has returned and
// the task has left the running set, before its future settles. It is not
// called for withdrawn tasks.
func AfterRun(fn func(err error)) SubmitOption {
	return func(o *submitOptions) {
		o.afterRun = fn
	}
}

type task[T any] struct {
	id         string
	work       Work[T]
	enqueuedAt time.Time
	startedAt  time.Time
	future     *Future[T]
	afterRun   func(err error)
}

func (t *task[T]) info(state TaskState) TaskInfo {
	info := TaskInfo{ID: t.id, State: state, EnqueuedAt: t.enqueuedAt}
	if state == StateRunning {
		started := t.startedAt
		info.StartedAt = &started
	}
	return info
}

// Queue runs submitted work with at most Concurrency tasks in flight. Tasks
// beyond the ceiling wait in arrival order. The queue does not look at ids
// when admitting; ids only serve status lookups.
type Queue[T any] struct {
	mu          sync.Mutex
	concurrency int
	waiting     []*task[T]
	running     []*task[T]

	observer Observer
	baseCtx  context.Context
	now      func() time.Time
}

// New creates a queue with the given concurrency ceiling. Values below one
// fall back to DefaultConcurrency.
func New[T any](concurrency int, opts ...Option) *Queue[T] {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	o := options{
		baseCtx: context.Background(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Queue[T]{
		concurrency: concurrency,
		observer:    o.observer,
		baseCtx:     o.baseCtx,
		now:         o.now,
	}
}

// Concurrency returns the configured ceiling.
func (q *Queue[T]) Concurrency() int {
	return q.concurrency
}

// Submit places work at the back of the waiting line and returns its future.
// It never blocks; if a slot is free the work starts immediately on its own
// goroutine.
func (q *Queue[T]) Submit(id string, work Work[T], opts ...SubmitOption) *Future[T] {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	t := &task[T]{
		id:       id,
		work:     work,
		future:   newFuture[T](),
		afterRun: o.afterRun,
	}

	q.mu.Lock()
	t.enqueuedAt = q.now()
	q.waiting = append(q.waiting, t)
	depth := len(q.waiting)
	ready := q.admitLocked()
	q.mu.Unlock()

	if q.observer != nil {
		q.observer.TaskQueued(id, depth)
	}
	q.start(ready)

	return t.future
}

// Withdraw removes the first waiting task with the given id. Its future
// settles with ErrWithdrawn. Running tasks are never withdrawn.
func (q *Queue[T]) Withdraw(id string) bool {
	q.mu.Lock()
	var withdrawn *task[T]
	for i, t := range q.waiting {
		if t.id == id {
			withdrawn = t
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	if withdrawn == nil {
		return false
	}

	if q.observer != nil {
		q.observer.TaskSettled(id, 0, ErrWithdrawn)
	}
	var zero T
	withdrawn.future.settle(zero, ErrWithdrawn)
	return true
}

// admitLocked moves tasks from the head of the waiting line into the running
// set while there is room. The caller must hold q.mu and start the returned
// tasks after releasing it.
func (q *Queue[T]) admitLocked() []*task[T] {
	var ready []*task[T]
	for len(q.running) < q.concurrency && len(q.waiting) > 0 {
		t := q.waiting[0]
		q.waiting[0] = nil
		q.waiting = q.waiting[1:]

		t.startedAt = q.now()
		q.running = append(q.running, t)
		ready = append(ready, t)
	}
	return ready
}

func (q *Queue[T]) start(ready []*task[T]) {
	for _, t := range ready {
		if q.observer != nil {
			q.observer.TaskAdmitted(t.id, t.startedAt.Sub(t.enqueuedAt))
		}
		go q.run(t)
	}
}

func (q *Queue[T]) run(t *task[T]) {
	value, err := q.execute(t)

	q.mu.Lock()
	for i, r := range q.running {
		if r == t {
			q.running = append(q.running[:i], q.running[i+1:]...)
			break
		}
	}
	ran := q.now().Sub(t.startedAt)
	ready := q.admitLocked()
	q.mu.Unlock()

	if t.afterRun != nil {
		t.afterRun(err)
	}
	if q.observer != nil {
		q.observer.TaskSettled(t.id, ran, err)
	}
	t.future.settle(value, err)
	q.start(ready)
}

func (q *Queue[T]) execute(t *task[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &PanicError{ID: t.id, Value: r}
		}
	}()
	return t.work.Execute(q.baseCtx)
}

// Status returns a consistent snapshot of running and waiting tasks.
func (q *Queue[T]) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := Status{
		Concurrency:  q.concurrency,
		RunningCount: len(q.running),
		QueuedCount:  len(q.waiting),
		Running:      make([]TaskInfo, 0, len(q.running)),
		Queued:       make([]TaskInfo, 0, len(q.waiting)),
	}
	for _, t := range q.running {
		status.Running = append(status.Running, t.info(StateRunning))
	}
	for _, t := range q.waiting {
		status.Queued = append(status.Queued, t.info(StateQueued))
	}
	return status
}

// IsRunning reports whether a task with id is currently executing.
func (q *Queue[T]) IsRunning(id string) bool {
	return q.Position(id) == 0
}

// IsQueued reports whether a task with id is waiting for a slot.
func (q *Queue[T]) IsQueued(id string) bool {
	return q.Position(id) > 0
}

// Position returns 0 for a running id, its 1-based place in the waiting
// line for a queued id, and NotFound otherwise.
func (q *Queue[T]) Position(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range q.running {
		if t.id == id {
			return 0
		}
	}
	for i, t := range q.waiting {
		if t.id == id {
			return i + 1
		}
	}
	return NotFound
}
