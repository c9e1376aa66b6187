package runs

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a ticket's verification run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// DefaultRetention is how long a completed record stays visible.
const DefaultRetention = time.Hour

var (
	// ErrRunActive matches any ConflictError via errors.Is.
	ErrRunActive = errors.New("runs: a run for this ticket is already active")

	// ErrNotFound is returned when no record exists for a ticket.
	ErrNotFound = errors.New("runs: no run recorded for ticket")

	// ErrNotQueued is returned when withdrawing a run that already started.
	ErrNotQueued = errors.New("runs: run is not waiting in the queue")
)

// ConflictError rejects a new run while an earlier one is queued or running.
type ConflictError struct {
	TicketID string
	RunID    string
	Status   Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("runs: ticket %s already has a %s run (%s)", e.TicketID, e.Status, e.RunID)
}

// Is lets errors.Is(err, ErrRunActive) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrRunActive
}

// Record tracks one ticket's current run.
type Record struct {
	TicketID    string     `json:"ticketId" jsonschema:"required"`
	RunID       string     `json:"runId" jsonschema:"required"`
	Status      Status     `json:"status" jsonschema:"required,enum=queued,enum=running,enum=completed"`
	QueuedAt    time.Time  `json:"queuedAt" jsonschema:"required"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// expiry is a heap entry scheduling the removal of a completed record.
type expiry struct {
	ticketID string
	runID    string
	at       time.Time
}

// expiryHeap orders expiries by time, earliest first.
type expiryHeap []expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) {
	*h = append(*h, x.(expiry))
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
