package shared

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const memoryDatabase = ":memory:"

// sqliteParams are appended to every DSN: enforce foreign keys and wait on a locked file instead of
// failing with SQLITE_BUSY while the cache and run history share the database.
const sqliteParams = "?_foreign_keys=on&_busy_timeout=5000"

// NewDatabase opens the SQLite database at path, creating its parent directory.
// The path can be ":memory:" for an in-memory database.
func NewDatabase(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	}

	if path != memoryDatabase {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	return db, nil
}

// ConfigureDatabase applies the pool limits from the [database] config section.
// Non-positive values keep the driver defaults; idle connections never exceed open ones.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		maxIdleConns = min(maxIdleConns, maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
