package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the run history tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id                   TEXT PRIMARY KEY,
		policy               TEXT NOT NULL,
		seed                 INTEGER NOT NULL,
		io_request_chance    INTEGER NOT NULL,
		io_completion_chance INTEGER NOT NULL,
		timeslices           TEXT NOT NULL DEFAULT '[]',
		total_ticks          INTEGER NOT NULL,
		processes            INTEGER NOT NULL,
		created_at           TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS process_stats (
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		process_id INTEGER NOT NULL,
		arrival    INTEGER NOT NULL,
		service    INTEGER NOT NULL,
		ready_time INTEGER NOT NULL,
		io_time    INTEGER NOT NULL,
		cpu_time   INTEGER NOT NULL,
		completion INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_policy ON runs(policy)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
