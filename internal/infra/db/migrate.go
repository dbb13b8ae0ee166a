package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the per-dialect DDL. JSON documents are TEXT in SQLite and JSONB in Postgres.
var schema = map[Driver][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS analyses (
    id               TEXT PRIMARY KEY,
    correlation_id   TEXT NOT NULL,
    provider         TEXT NOT NULL,
    input_chars      INTEGER NOT NULL,
    redaction_count  INTEGER NOT NULL DEFAULT 0,
    findings         TEXT,
    scores           TEXT,
    recommendations  TEXT,
    fallback_applied BOOLEAN NOT NULL DEFAULT 0,
    error_category   TEXT,
    created_at       TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_correlation_id ON analyses(correlation_id)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS analyses (
    id               UUID PRIMARY KEY,
    correlation_id   TEXT NOT NULL,
    provider         VARCHAR(50) NOT NULL,
    input_chars      INTEGER NOT NULL,
    redaction_count  INTEGER NOT NULL DEFAULT 0,
    findings         JSONB,
    scores           JSONB,
    recommendations  JSONB,
    fallback_applied BOOLEAN NOT NULL DEFAULT FALSE,
    error_category   VARCHAR(50),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_correlation_id ON analyses(correlation_id)`,
	},
}

// MigrateUp creates the schema for driver. It is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB, driver Driver) error {
	stmts, ok := schema[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}
	return nil
}

// MigrateDown rolls back the database schema.
// Use with caution: this will delete every stored analysis.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_analyses_correlation_id`,
		`DROP INDEX IF EXISTS idx_analyses_created_at`,
		`DROP TABLE IF EXISTS analyses`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("MigrateDown: %w", err)
		}
	}
	return nil
}
