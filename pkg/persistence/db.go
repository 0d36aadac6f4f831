// Package persistence provides SQLite-based storage for mission state, phase
// results, and the token usage ledger, with singleton database access.
package persistence

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"missionctl/pkg/logx"
)

// DB is the singleton database manager.
// All database access should go through this instance.
//
//nolint:gochecknoglobals // Intentional singleton pattern for database access
var (
	globalDB   *sql.DB
	globalDBMu sync.RWMutex
	dbLogger   *logx.Logger
)

// Initialize sets up the singleton database connection.
// This must be called at startup before any database operations.
// Subsequent calls are no-ops until Close.
func Initialize(dbPath string) error {
	globalDBMu.Lock()
	defer globalDBMu.Unlock()

	if globalDB != nil {
		return nil
	}

	if dbLogger == nil {
		dbLogger = logx.NewLogger("persistence")
	}

	db, err := OpenDatabase(dbPath)
	if err != nil {
		return err
	}

	globalDB = db
	dbLogger.Info("📦 Database initialized: %s", dbPath)
	return nil
}

// OpenDatabase opens a standalone connection with WAL mode and a busy
// timeout, and brings the schema up to the current version. Callers that
// want isolation from the singleton (tests, one-shot CLI commands) use this
// directly.
func OpenDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// GetDB returns the singleton database connection.
// Panics if Initialize has not been called.
func GetDB() *sql.DB {
	globalDBMu.RLock()
	defer globalDBMu.RUnlock()

	if globalDB == nil {
		panic("persistence.Initialize must be called before GetDB")
	}
	return globalDB
}

// IsInitialized returns true if the database has been initialized.
func IsInitialized() bool {
	globalDBMu.RLock()
	defer globalDBMu.RUnlock()
	return globalDB != nil
}

// Close closes the database connection.
// Should be called during shutdown.
func Close() error {
	globalDBMu.Lock()
	defer globalDBMu.Unlock()

	if globalDB != nil {
		err := globalDB.Close()
		globalDB = nil
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

// Missions returns a MissionStore bound to the singleton connection.
// This is the primary way to perform mission persistence operations.
func Missions() *MissionStore {
	return NewMissionStore(GetDB())
}
