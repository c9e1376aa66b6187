// Package history persists finished verification runs in Postgres.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("history: run not found")

// Status summarises a finished run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

const maxListLimit = 500

// Entry is one row of run history.
type Entry struct {
	RunID      string                  `json:"runId" jsonschema:"required"`
	TicketID   string                  `json:"ticketId" jsonschema:"required"`
	Identifier string                  `json:"identifier,omitempty"`
	TargetURL  string                  `json:"targetUrl"`
	Status     Status                  `json:"status" jsonschema:"enum=passed,enum=failed,enum=error"`
	Passed     int                     `json:"passed"`
	Failed     int                     `json:"failed"`
	Errored    int                     `json:"errored"`
	Error      string                  `json:"error,omitempty"`
	ResultKey  string                  `json:"resultKey,omitempty"`
	Criteria   []types.CriterionResult `json:"criteria,omitempty"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt"`
}

// Filter narrows List.
type Filter struct {
	TicketID string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Store reads and writes the verification_runs table.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a store on an open pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EntryFromResult builds a history row. runErr is the run's failure, if any.
func EntryFromResult(result *types.Result, runErr error) Entry {
	e := Entry{
		RunID:      result.RunID,
		TicketID:   result.TicketID,
		Identifier: result.Identifier,
		TargetURL:  result.TargetURL,
		Passed:     result.Passed,
		Failed:     result.Failed,
		Errored:    result.Errored,
		ResultKey:  result.ResultKey,
		Criteria:   result.Criteria,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	switch {
	case runErr != nil:
		e.Status = StatusError
		e.Error = runErr.Error()
	case result.AllPassed():
		e.Status = StatusPassed
	case result.Failed > 0:
		e.Status = StatusFailed
	default:
		e.Status = StatusError
	}
	return e
}

// Record inserts or replaces the row for e.RunID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	criteria, err := sonic.Marshal(e.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}
	if e.Criteria == nil {
		criteria = []byte("[]")
	}

	query := `
		INSERT INTO verification_runs (
			run_id, ticket_id, identifier, target_url, status,
			passed, failed, errored, error, result_key, criteria,
			started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			passed = EXCLUDED.passed,
			failed = EXCLUDED.failed,
			errored = EXCLUDED.errored,
			error = EXCLUDED.error,
			result_key = EXCLUDED.result_key,
			criteria = EXCLUDED.criteria,
			finished_at = EXCLUDED.finished_at
	`

	_, err = s.db.Exec(ctx, query,
		e.RunID, e.TicketID, nullable(e.Identifier), e.TargetURL, string(e.Status),
		e.Passed, e.Failed, e.Errored, nullable(e.Error), nullable(e.ResultKey), string(criteria),
		e.StartedAt, e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", e.RunID, err)
	}
	return nil
}

const selectColumns = `
	SELECT run_id, ticket_id, identifier, target_url, status,
		passed, failed, errored, error, result_key, criteria,
		started_at, finished_at
	FROM verification_runs
`

// Get returns a single run.
func (s *Store) Get(ctx context.Context, runID string) (*Entry, error) {
	row := s.db.QueryRow(ctx, selectColumns+` WHERE run_id = $1`, runID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return e, nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = 50
	}

	query := selectColumns + `
		WHERE ($1 = '' OR ticket_id = $1)
		  AND ($2::timestamptz IS NULL OR finished_at >= $2)
		ORDER BY finished_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := s.db.Query(ctx, query, f.TicketID, f.Since, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return entries, nil
}

// DeleteBefore removes runs that finished before cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM verification_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e          Entry
		status     string
		identifier *string
		errText    *string
		resultKey  *string
		criteria   []byte
	)
	err := row.Scan(
		&e.RunID, &e.TicketID, &identifier, &e.TargetURL, &status,
		&e.Passed, &e.Failed, &e.Errored, &errText, &resultKey, &criteria,
		&e.StartedAt, &e.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = Status(status)
	if identifier != nil {
		e.Identifier = *identifier
	}
	if errText != nil {
		e.Error = *errText
	}
	if resultKey != nil {
		e.ResultKey = *resultKey
	}
	if len(criteria) > 0 {
		if err := sonic.Unmarshal(criteria, &e.Criteria); err != nil {
			return nil, fmt.Errorf("failed to decode criteria: %w", err)
		}
	}
	return &e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
