// Package runs keeps at most one active verification run per ticket and
// remembers finished runs for a retention window.
package runs

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
)

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	retention time.Duration
	now       func() time.Time
	newID     func() string
}

// WithRetention sets how long completed records are kept.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// Coordinator binds ticket ids to queued work. The queue is keyed by ticket
// id so its position lookups line up with the records kept here.
type Coordinator[T any] struct {
	queue     *taskqueue.Queue[T]
	retention time.Duration
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	records  map[string]*Record
	expiries expiryHeap
}

// NewCoordinator creates a coordinator submitting to queue.
func NewCoordinator[T any](queue *taskqueue.Queue[T], opts ...Option) *Coordinator[T] {
	o := options{
		retention: DefaultRetention,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Coordinator[T]{
		queue:     queue,
		retention: o.retention,
		now:       o.now,
		newID:     o.newID,
		records:   make(map[string]*Record),
	}
}

// Queue returns the underlying task queue.
func (c *Coordinator[T]) Queue() *taskqueue.Queue[T] {
	return c.queue
}

// Retention returns the configured retention window.
func (c *Coordinator[T]) Retention() time.Duration {
	return c.retention
}

// AcceptRun submits work for ticketID unless a run for it is queued or
// running, in which case a *ConflictError is returned and nothing is
// submitted. The record moves to running when the queue starts the work and
// to completed once the task has left the running set, before its future
// settles, whatever the outcome. The work's context
// carries the run id, see RunIDFromContext.
func (c *Coordinator[T]) AcceptRun(ticketID string, work taskqueue.Work[T]) (Record, *taskqueue.Future[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked()

	if existing, ok := c.records[ticketID]; ok && existing.Status != StatusCompleted {
		return *existing, nil, &ConflictError{
			TicketID: ticketID,
			RunID:    existing.RunID,
			Status:   existing.Status,
		}
	}

	rec := &Record{
		TicketID: ticketID,
		RunID:    c.newID(),
		Status:   StatusQueued,
		QueuedAt: c.now(),
	}
	c.records[ticketID] = rec

	runID := rec.RunID
	// Completed is recorded after the task has left the running set.
	future := c.queue.Submit(ticketID,
		taskqueue.WorkFunc[T](func(ctx context.Context) (T, error) {
			c.markRunning(ticketID, runID)
			return work.Execute(WithRunID(ctx, runID))
		}),
		taskqueue.AfterRun(func(err error) {
			c.markCompleted(ticketID, runID, err)
		}),
	)

	return *rec, future, nil
}

func (c *Coordinator[T]) markRunning(ticketID, runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[ticketID]
	if !ok || rec.RunID != runID || rec.Status != StatusQueued {
		return
	}
	started := c.now()
	rec.Status = StatusRunning
	rec.StartedAt = &started
}

func (c *Coordinator[T]) markCompleted(ticketID, runID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[ticketID]
	if !ok || rec.RunID != runID {
		return
	}
	completed := c.now()
	expires := completed.Add(c.retention)
	rec.Status = StatusCompleted
	rec.CompletedAt = &completed
	rec.ExpiresAt = &expires
	if err != nil {
		rec.Error = err.Error()
	}

	heap.Push(&c.expiries, expiry{ticketID: ticketID, runID: runID, at: expires})
}

// Get returns the current record for ticketID.
func (c *Coordinator[T]) Get(ticketID string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked()
	rec, ok := c.records[ticketID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns all records ordered by queue time.
func (c *Coordinator[T]) List() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked()
	out := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	return out
}

// Withdraw removes a run that is still waiting for a queue slot and forgets
// its record.
func (c *Coordinator[T]) Withdraw(ticketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[ticketID]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusQueued || !c.queue.Withdraw(ticketID) {
		return ErrNotQueued
	}
	delete(c.records, ticketID)
	return nil
}

// Purge drops completed records whose retention window has elapsed and
// returns how many were removed.
func (c *Coordinator[T]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

func (c *Coordinator[T]) purgeLocked() int {
	now := c.now()
	purged := 0
	for c.expiries.Len() > 0 && !c.expiries[0].at.After(now) {
		e := heap.Pop(&c.expiries).(expiry)
		rec, ok := c.records[e.ticketID]
		if !ok || rec.RunID != e.runID || rec.Status != StatusCompleted {
			continue
		}
		delete(c.records, e.ticketID)
		purged++
	}
	return purged
}
