package persistence

import (
	"database/sql"
	"errors"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 2

// initializeSchemaWithMigrations ensures the database schema is at the current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// If database is empty (version 0), create fresh schema
	if currentVersion == 0 {
		return createSchema(db)
	}

	// If database is up-to-date, no migration needed
	if currentVersion == CurrentSchemaVersion {
		return nil
	}

	// Run migrations from current version to target version
	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

// runMigrations applies database migrations from current version to target version.
func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}

		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

// runMigration applies a specific version migration.
func runMigration(db *sql.DB, version int) error {
	switch version {
	case 1:
		return nil // Version 1 schemas are created fresh via createSchema
	case 2:
		return migrateToVersion2(db)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrateToVersion2 adds file and verification tracking to phase results.
func migrateToVersion2(db *sql.DB) error {
	migrations := []string{
		"ALTER TABLE phase_results ADD COLUMN files_created TEXT",
		"ALTER TABLE phase_results ADD COLUMN files_modified TEXT",
		"ALTER TABLE phase_results ADD COLUMN verification_results TEXT",
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %s: %w", migration, err)
		}
	}

	return nil
}

// createSchema creates all required tables and indices.
func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	tables := []string{
		// Schema version tracking
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Mission aggregate, one row per task
		`CREATE TABLE IF NOT EXISTS missions (
			task_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK (mode IN ('single', 'phased')),
			state TEXT NOT NULL,
			requirement TEXT NOT NULL,
			current_phase_index INTEGER NOT NULL DEFAULT 0,
			pending_approval INTEGER NOT NULL DEFAULT 0,
			total_tokens BIGINT NOT NULL DEFAULT 0,
			score TEXT,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			updated_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Planned phases, replaced wholesale on every save
		`CREATE TABLE IF NOT EXISTS phases (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES missions(task_id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','in-progress','completed','failed','skipped')),
			estimated_tokens INTEGER NOT NULL DEFAULT 0
		)`,

		// Phase outcomes, append-only audit trail
		`CREATE TABLE IF NOT EXISTS phase_results (
			phase_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES missions(task_id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			tokens_used BIGINT NOT NULL DEFAULT 0,
			summary TEXT,
			files_created TEXT,
			files_modified TEXT,
			verification_results TEXT,
			completed_at DATETIME
		)`,

		// Token usage ledger
		`CREATE TABLE IF NOT EXISTS usage_events (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			phase_id TEXT,
			kind TEXT NOT NULL,
			tokens INTEGER NOT NULL,
			source TEXT,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_phases_task ON phases(task_id, ordinal)",
		"CREATE INDEX IF NOT EXISTS idx_phase_results_task ON phase_results(task_id)",
		"CREATE INDEX IF NOT EXISTS idx_usage_events_task ON usage_events(task_id)",
		"CREATE INDEX IF NOT EXISTS idx_usage_events_phase ON usage_events(phase_id)",
	}

	for _, index := range indices {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := setSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// setSchemaVersion records the current schema version.
func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO schema_version (version) VALUES (?)
	`, version)
	if err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the current schema version from the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	// First ensure the schema_version table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil // No version set yet
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}
