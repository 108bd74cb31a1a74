// Package sqlitemigrate applies versioned SQL migrations to SQLite databases.
//
// Each migration runs together with its schema_migrations record in a single
// transaction, so a store is always at exactly one fully applied version.
// Migrations are forward-only: a shipped migration is never edited or rolled
// back, only superseded by a later version.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const appliedAtLayout = "2006-01-02T15:04:05.000000Z"

// appliedAtReadLayouts covers the runner's own layout and SQLite's
// datetime('now') and CURRENT_TIMESTAMP forms.
var appliedAtReadLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

const createMigrationTableSQL = `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// Record is one applied migration. AppliedAt is zero when the store did not
// record a time.
type Record struct {
	Version   int
	AppliedAt time.Time
}

func formatAppliedAt(value time.Time) string {
	return value.UTC().Format(appliedAtLayout)
}

// parseAppliedAt reads a recorded applied_at. A NULL or empty value yields
// the zero time.
func parseAppliedAt(value sql.NullString) (time.Time, error) {
	raw := strings.TrimSpace(value.String)
	if !value.Valid || raw == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range appliedAtReadLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func ensureMigrationTable(ctx context.Context, sqlDB *sql.DB) error {
	if _, err := sqlDB.ExecContext(ctx, createMigrationTableSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, sqlDB *sql.DB) ([]int, error) {
	rows, err := sqlDB.QueryContext(ctx, "SELECT version FROM "+migrationTable+" ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return versions, nil
}

// CurrentVersion returns MAX(version) from the migration table, or 0 when the
// table is empty or missing.
func CurrentVersion(ctx context.Context, sqlDB *sql.DB) (int, error) {
	if sqlDB == nil {
		return 0, fmt.Errorf("sql db is required")
	}
	exists, err := migrationTableExists(ctx, sqlDB)
	if err != nil || !exists {
		return 0, err
	}
	var version sql.NullInt64
	if err := sqlDB.QueryRowContext(ctx, "SELECT MAX(version) FROM "+migrationTable).Scan(&version); err != nil {
		return 0, fmt.Errorf("read current migration version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// AppliedRecords lists applied migrations in version order without modifying
// the database.
func AppliedRecords(ctx context.Context, sqlDB *sql.DB) ([]Record, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	exists, err := migrationTableExists(ctx, sqlDB)
	if err != nil || !exists {
		return nil, err
	}

	rows, err := sqlDB.QueryContext(ctx, "SELECT version, applied_at FROM "+migrationTable+" ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("list migration records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			version   int
			appliedAt sql.NullString
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration record: %w", err)
		}
		parsed, err := parseAppliedAt(appliedAt)
		if err != nil {
			return nil, fmt.Errorf("parse applied_at of version %d: %w", version, err)
		}
		records = append(records, Record{Version: version, AppliedAt: parsed})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list migration records: %w", err)
	}
	return records, nil
}

func migrationTableExists(ctx context.Context, sqlDB *sql.DB) (bool, error) {
	var name string
	err := sqlDB.QueryRowContext(
		ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		migrationTable,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check migration table: %w", err)
	}
	return true, nil
}
