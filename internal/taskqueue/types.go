package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultConcurrency is the number of tasks allowed to run at once when the
// caller does not ask for a specific ceiling.
const DefaultConcurrency = 3

// NotFound is the position reported for ids that are neither running nor waiting.
const NotFound = -1

// TaskState describes where a task currently sits inside the queue.
type TaskState string

const (
	StateQueued  TaskState = "queued"
	StateRunning TaskState = "running"
)

var (
	// ErrWithdrawn settles the future of a waiting task removed with Withdraw.
	ErrWithdrawn = errors.New("taskqueue: task withdrawn before it started")

	// ErrNotSettled is returned by Future.Result while the work is still pending.
	ErrNotSettled = errors.New("taskqueue: task has not settled")
)

// Work is a deferred operation owned by the queue. The queue calls Execute
// exactly once, when the task is admitted.
type Work[T any] interface {
	Execute(ctx context.Context) (T, error)
}

// WorkFunc adapts an ordinary function to the Work interface.
type WorkFunc[T any] func(ctx context.Context) (T, error)

// Execute calls f(ctx).
func (f WorkFunc[T]) Execute(ctx context.Context) (T, error) {
	return f(ctx)
}

// TaskInfo is a read-only view of a queued or running task.
type TaskInfo struct {
	ID         string     `json:"id"`
	State      TaskState  `json:"state"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
}

// Status is a snapshot of the queue suitable for health endpoints.
type Status struct {
	Concurrency  int        `json:"concurrency"`
	RunningCount int        `json:"runningCount"`
	QueuedCount  int        `json:"queuedCount"`
	Running      []TaskInfo `json:"running"`
	Queued       []TaskInfo `json:"queued"`
}

// RunningIDs returns the ids of running tasks in admission order.
func (s Status) RunningIDs() []string {
	return taskIDs(s.Running)
}

// QueuedIDs returns the ids of waiting tasks in arrival order.
func (s Status) QueuedIDs() []string {
	return taskIDs(s.Queued)
}

func taskIDs(tasks []TaskInfo) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// Observer receives lifecycle notifications. Calls are made outside the
// queue lock, so implementations may call back into the queue.
type Observer interface {
	TaskQueued(id string, depth int)
	TaskAdmitted(id string, waited time.Duration)
	TaskSettled(id string, ran time.Duration, err error)
}

// PanicError wraps a panic raised by a task's work.
type PanicError struct {
	ID    string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskqueue: task %s panicked: %v", e.ID, e.Value)
}
