package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements holds the tracker's tables and indexes. Every statement
// is idempotent so startup can apply them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id                TEXT PRIMARY KEY,
		week_num              INTEGER NOT NULL,
		status                TEXT NOT NULL,
		created_at            TIMESTAMPTZ NOT NULL,
		completed_at          TIMESTAMPTZ,
		summary               JSONB NOT NULL DEFAULT '{}',
		filtered_summary      JSONB NOT NULL DEFAULT '{}',
		filtered_record_count INTEGER NOT NULL DEFAULT 0,
		artifacts             JSONB NOT NULL DEFAULT '{}',
		error                 TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_week_num_idx ON jobs (week_num)`,
	`CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS job_changes (
		job_id         TEXT NOT NULL REFERENCES jobs (job_id) ON DELETE CASCADE,
		filtered       BOOLEAN NOT NULL,
		position       INTEGER NOT NULL,
		store_id       TEXT NOT NULL,
		model_id       TEXT NOT NULL,
		channel        TEXT NOT NULL,
		previous_count INTEGER NOT NULL,
		current_count  INTEGER NOT NULL,
		difference     INTEGER NOT NULL,
		change_type    TEXT NOT NULL,
		PRIMARY KEY (job_id, filtered, position)
	)`,
	`CREATE TABLE IF NOT EXISTS filter_config (
		id         INTEGER PRIMARY KEY,
		config     JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS store_contacts (
		store_id    TEXT PRIMARY KEY,
		store_name  TEXT NOT NULL,
		channel     TEXT NOT NULL DEFAULT '',
		owner_name  TEXT NOT NULL,
		owner_email TEXT NOT NULL,
		active      BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS oversight_contacts (
		email  TEXT PRIMARY KEY,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}
	return nil
}
