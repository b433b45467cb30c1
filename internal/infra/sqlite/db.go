// Package sqlite provides SQLite-based persistent storage for scribed.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id            TEXT PRIMARY KEY,
			source_url    TEXT NOT NULL,
			source_kind   TEXT NOT NULL,
			model         TEXT NOT NULL DEFAULT '',
			language      TEXT NOT NULL DEFAULT '',
			output_format TEXT NOT NULL,
			device        TEXT NOT NULL DEFAULT '',
			compute_type  TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			stage         TEXT NOT NULL DEFAULT '',
			progress      REAL NOT NULL DEFAULT 0,
			error_kind    TEXT,
			error_message TEXT,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,

		`CREATE TABLE IF NOT EXISTS artifacts (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id           TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			file_name         TEXT NOT NULL,
			location          TEXT NOT NULL,
			size_bytes        INTEGER NOT NULL,
			format            TEXT NOT NULL,
			detected_language TEXT NOT NULL DEFAULT '',
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_task ON artifacts(task_id)`,
	}

	for i, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
