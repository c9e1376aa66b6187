package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS verification_runs (
	run_id        TEXT PRIMARY KEY,
	ticket_id     TEXT NOT NULL,
	identifier    TEXT,
	target_url    TEXT NOT NULL,
	status        TEXT NOT NULL,
	passed        INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	errored       INTEGER NOT NULL DEFAULT 0,
	error         TEXT,
	result_key    TEXT,
	criteria      JSONB NOT NULL DEFAULT '[]'::jsonb,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS verification_runs_ticket_idx
	ON verification_runs (ticket_id, finished_at DESC);

CREATE INDEX IF NOT EXISTS verification_runs_finished_idx
	ON verification_runs (finished_at DESC);
`

// Migrate creates the tables the service needs. It is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error running migrations: %w", err)
	}
	return nil
}
