package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := checkLocalDisk(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS arena_state (
  arena_name  TEXT PRIMARY KEY,
  data        JSON NOT NULL DEFAULT '{}',
  updated_at  TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS task_log (
  instance_id   TEXT NOT NULL,
  task_id       INTEGER NOT NULL,
  arena         TEXT NOT NULL,
  status        TEXT NOT NULL,
  result        JSON,
  error         TEXT,
  created_at    TEXT NOT NULL,
  started_at    TEXT,
  completed_at  TEXT NOT NULL,
  PRIMARY KEY (instance_id, task_id)
);`,
		`CREATE INDEX IF NOT EXISTS task_log_completed_at_idx ON task_log(completed_at);`,
		`CREATE INDEX IF NOT EXISTS task_log_status_idx ON task_log(status);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
