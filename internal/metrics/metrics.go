// Package metrics exposes Prometheus instrumentation for the run queue,
// webhook intake and verification outcomes.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
)

const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomePanic     = "panic"
	outcomeWithdrawn = "withdrawn"
)

var (
	// queueDepth tracks the number of tasks waiting for a slot.
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stagehand_queue_waiting_tasks",
		Help: "Number of verification runs waiting for a browser slot",
	})

	// queueRunning tracks the number of tasks holding a slot.
	queueRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stagehand_queue_running_tasks",
		Help: "Number of verification runs currently executing",
	})

	// tasksSettled counts finished tasks by outcome.
	tasksSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagehand_queue_tasks_settled_total",
		Help: "Total number of settled queue tasks by outcome",
	}, []string{"outcome"}) // outcome: ok, error, panic, withdrawn

	// queueWait tracks how long tasks waited before admission.
	queueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stagehand_queue_wait_seconds",
		Help:    "Time a verification run waited for a browser slot",
		Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	// taskDuration tracks how long admitted tasks ran.
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stagehand_queue_run_duration_seconds",
		Help:    "Time a verification run held a browser slot",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	})

	// webhookEvents counts webhook deliveries by how they were handled.
	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagehand_webhook_events_total",
		Help: "Total number of webhook deliveries by result",
	}, []string{"result"}) // result: accepted, conflict, skipped, ignored, duplicate, rejected

	// criteriaVerified counts individual criterion verdicts.
	criteriaVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagehand_criteria_verified_total",
		Help: "Total number of verified acceptance criteria by verdict",
	}, []string{"verdict"}) // verdict: passed, failed, error

	// agentCircuit is 1 while calls to the browser agent are short-circuited.
	agentCircuit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stagehand_agent_circuit_open",
		Help: "Whether the browser agent circuit breaker is open (1) or not (0)",
	})

	// retentionPruned counts items removed by retention jobs.
	retentionPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagehand_retention_pruned_total",
		Help: "Total number of items removed by retention jobs",
	}, []string{"kind"}) // kind: history, artifact
)

// QueueObserver feeds taskqueue lifecycle events into Prometheus.
type QueueObserver struct{}

var _ taskqueue.Observer = (*QueueObserver)(nil)

// NewQueueObserver creates a new queue observer.
func NewQueueObserver() *QueueObserver {
	return &QueueObserver{}
}

// TaskQueued records a task entering the waiting line.
func (o *QueueObserver) TaskQueued(id string, depth int) {
	queueDepth.Inc()
}

// TaskAdmitted records a task moving from waiting to running.
func (o *QueueObserver) TaskAdmitted(id string, waited time.Duration) {
	queueDepth.Dec()
	queueRunning.Inc()
	queueWait.Observe(waited.Seconds())
}

// TaskSettled records a finished or withdrawn task.
func (o *QueueObserver) TaskSettled(id string, ran time.Duration, err error) {
	outcome := Outcome(err)
	if outcome == outcomeWithdrawn {
		queueDepth.Dec()
	} else {
		queueRunning.Dec()
		taskDuration.Observe(ran.Seconds())
	}
	tasksSettled.WithLabelValues(outcome).Inc()
}

// Outcome maps a task error to its metric label.
func Outcome(err error) string {
	var panicErr *taskqueue.PanicError
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, taskqueue.ErrWithdrawn):
		return outcomeWithdrawn
	case errors.As(err, &panicErr):
		return outcomePanic
	default:
		return outcomeError
	}
}

// RecordWebhook counts a webhook delivery by result.
func RecordWebhook(result string) {
	webhookEvents.WithLabelValues(result).Inc()
}

// RecordVerdict counts a single criterion verdict.
func RecordVerdict(verdict string) {
	criteriaVerified.WithLabelValues(verdict).Inc()
}

// SetAgentCircuitOpen records the browser agent circuit breaker state.
func SetAgentCircuitOpen(open bool) {
	if open {
		agentCircuit.Set(1)
		return
	}
	agentCircuit.Set(0)
}

// RecordPruned counts items removed by a retention job.
func RecordPruned(kind string, n int) {
	retentionPruned.WithLabelValues(kind).Add(float64(n))
}
