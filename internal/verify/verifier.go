// Package verify runs a ticket's acceptance criteria through the browser
// agent and publishes the outcome.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/agent"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/metrics"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/runs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/storage"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/telemetry"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/tracker"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
)

// ErrNoCriteria is returned for a job without criteria.
var ErrNoCriteria = errors.New("verify: job has no criteria")

// ResultCache stores the latest result per ticket.
type ResultCache interface {
	Put(ctx context.Context, result *types.Result) error
}

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Job describes one verification run.
type Job struct {
	TicketID   string
	Identifier string
	TargetURL  string
	Criteria   []string
	// Comment posts a summary to the ticket when the run finishes.
	Comment bool
}

// Verifier turns jobs into queue work.
type Verifier struct {
	agent     agent.Verifier
	storage   storage.Storage
	cache     ResultCache
	history   HistoryRecorder
	commenter tracker.Commenter
	logger    *zerolog.Logger
	tracer    trace.Tracer
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithStorage keeps screenshots and result documents.
func WithStorage(s storage.Storage) Option {
	return func(v *Verifier) { v.storage = s }
}

// WithCache publishes results to the latest-result cache.
func WithCache(c ResultCache) Option {
	return func(v *Verifier) { v.cache = c }
}

// WithHistory records finished runs.
func WithHistory(h HistoryRecorder) Option {
	return func(v *Verifier) { v.history = h }
}

// WithCommenter posts summaries back to tickets.
func WithCommenter(c tracker.Commenter) Option {
	return func(v *Verifier) { v.commenter = c }
}

// WithTimeout bounds a whole run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier calling the given agent.
func NewVerifier(a agent.Verifier, logger *zerolog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		agent:  a,
		logger: logger,
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
	if v.logger == nil {
		nop := zerolog.Nop()
		v.logger = &nop
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Work wraps job for submission to the run queue.
func (v *Verifier) Work(job Job) taskqueue.Work[*types.Result] {
	return taskqueue.WorkFunc[*types.Result](func(ctx context.Context) (*types.Result, error) {
		return v.Run(ctx, job)
	})
}

// Run checks every criterion in order, one browser session at a time, then
// publishes the result. Criteria the agent cannot evaluate are recorded with
// VerdictError and do not stop the run. An error is returned only when the
// run was cut short; the partial result is still returned and published.
func (v *Verifier) Run(ctx context.Context, job Job) (*types.Result, error) {
	if len(job.Criteria) == 0 {
		return nil, ErrNoCriteria
	}

	runID, ok := runs.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	ctx, span := v.tracer.Start(ctx, "verify.run",
		trace.WithAttributes(telemetry.RunAttributes(job.TicketID, runID, len(job.Criteria))...))
	defer span.End()

	logger := v.logger.With().
		Str("ticket_id", job.TicketID).
		Str("identifier", job.Identifier).
		Str("run_id", runID).
		Logger()
	logger.Info().Int("criteria", len(job.Criteria)).Msg("Starting verification run")

	result := &types.Result{
		TicketID:   job.TicketID,
		Identifier: job.Identifier,
		RunID:      runID,
		TargetURL:  job.TargetURL,
		Criteria:   make([]types.CriterionResult, 0, len(job.Criteria)),
		StartedAt:  v.now(),
	}

	var runErr error
	for i, criterion := range job.Criteria {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run stopped before criterion %d: %w", i+1, err)
			result.Criteria = append(result.Criteria, types.CriterionResult{
				Index:     i,
				Criterion: criterion,
				Verdict:   types.VerdictError,
				Error:     err.Error(),
			})
			continue
		}
		cr := v.checkCriterion(ctx, &logger, result, i, criterion)
		metrics.RecordVerdict(string(cr.Verdict))
		result.Criteria = append(result.Criteria, cr)
	}

	result.FinishedAt = v.now()
	result.Tally()

	span.SetAttributes(
		attribute.Int("criteria.passed", result.Passed),
		attribute.Int("criteria.failed", result.Failed),
		attribute.Int("criteria.errored", result.Errored),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	// Publishing must not be cut short by the run deadline
	v.publish(context.WithoutCancel(ctx), &logger, job, result, runErr)

	logger.Info().
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Int("errored", result.Errored).
		Dur("duration", result.Duration()).
		Msg("Verification run finished")

	return result, runErr
}

func (v *Verifier) checkCriterion(ctx context.Context, logger *zerolog.Logger, result *types.Result, index int, criterion string) types.CriterionResult {
	ctx, span := v.tracer.Start(ctx, "verify.criterion", trace.WithAttributes(
		telemetry.CriterionIndexKey.Int(index),
	))
	defer span.End()

	started := v.now()
	cr := types.CriterionResult{Index: index, Criterion: criterion}

	verdict, err := v.agent.Verify(ctx, agent.Request{
		TicketID:  result.TicketID,
		RunID:     result.RunID,
		Index:     index,
		Criterion: criterion,
		TargetURL: result.TargetURL,
	})
	cr.DurationMs = v.now().Sub(started).Milliseconds()

	if err != nil {
		logger.Warn().Err(err).Int("criterion", index+1).Msg("Agent could not evaluate criterion")
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent error")
		cr.Verdict = types.VerdictError
		cr.Error = err.Error()
		return cr
	}

	cr.Reasoning = verdict.Reasoning
	cr.Steps = verdict.Steps
	if verdict.Passed {
		cr.Verdict = types.VerdictPassed
	} else {
		cr.Verdict = types.VerdictFailed
	}
	span.SetAttributes(attribute.String("criterion.verdict", string(cr.Verdict)))

	if len(verdict.Screenshot) > 0 && v.storage != nil {
		key := storage.BuildScreenshotKey(result.TicketID, result.RunID, index, verdict.ScreenshotType)
		idx := index
		err := v.storage.Put(ctx, key, verdict.Screenshot, &storage.Metadata{
			ContentType:    storage.ScreenshotContentType(verdict.ScreenshotType),
			TicketID:       result.TicketID,
			RunID:          result.RunID,
			CriterionIndex: &idx,
			CapturedAt:     v.now(),
		})
		if err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to store screenshot")
		} else {
			cr.ScreenshotKey = key
		}
	}
	return cr
}

// publish hands the result to every configured sink. Sink failures are
// logged and never change the run outcome.
func (v *Verifier) publish(ctx context.Context, logger *zerolog.Logger, job Job, result *types.Result, runErr error) {
	if v.storage != nil {
		key := storage.BuildResultKey(result.TicketID, result.RunID)
		doc, err := sonic.Marshal(result)
		if err == nil {
			err = v.storage.Put(ctx, key, doc, &storage.Metadata{
				ContentType: "application/json",
				TicketID:    result.TicketID,
				RunID:       result.RunID,
				CapturedAt:  result.FinishedAt,
			})
		}
		if err != nil {
			logger.Error().Err(err).Msg("Failed to store result document")
		} else {
			result.ResultKey = key
		}
	}

	if v.cache != nil {
		if err := v.cache.Put(ctx, result); err != nil {
			logger.Error().Err(err).Msg("Failed to cache result")
		}
	}

	if v.history != nil {
		if err := v.history.Record(ctx, history.EntryFromResult(result, runErr)); err != nil {
			logger.Error().Err(err).Msg("Failed to record run history")
		}
	}

	if job.Comment && v.commenter != nil {
		if err := v.commenter.PostComment(ctx, result.TicketID, FormatComment(result)); err != nil {
			logger.Error().Err(err).Msg("Failed to post result comment")
		}
	}
}
