package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		state       TEXT NOT NULL,
		mode        TEXT NOT NULL DEFAULT '',
		channel     TEXT NOT NULL DEFAULT '',
		chat_id     TEXT NOT NULL DEFAULT '',
		message_id  TEXT NOT NULL DEFAULT '',
		file_name   TEXT NOT NULL DEFAULT '',
		result      TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,

	`CREATE TABLE IF NOT EXISTS approvals (
		id          TEXT PRIMARY KEY,
		task_id     TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		chat_id     TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		resolved_at TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL DEFAULT '',
		decided_by  TEXT NOT NULL DEFAULT '',
		reason      TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_approvals_outcome ON approvals(outcome, created_at)`,
}

// timeFormat is RFC 3339 UTC with a fixed nine-digit fraction. The fixed
// width keeps lexicographic comparison in SQL chronological, which the
// prune and expiry sweeps depend on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime is the inverse of formatTime. An empty string maps to the
// zero time, used for unresolved approval rows.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
