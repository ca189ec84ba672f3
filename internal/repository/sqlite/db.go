package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the selections database and ensures the
// schema exists.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS selections (
		id TEXT PRIMARY KEY,
		requester_id INTEGER NOT NULL,
		token TEXT NOT NULL DEFAULT '',
		target_id INTEGER NOT NULL DEFAULT 0,
		target_profile TEXT NOT NULL DEFAULT '',
		stage INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		closed_at INTEGER,
		closed INTEGER NOT NULL DEFAULT 0,
		result_id INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_selections_active
		ON selections(requester_id) WHERE closed = 0;

	CREATE TABLE IF NOT EXISTS shown_candidates (
		requester_id INTEGER NOT NULL,
		target_id INTEGER NOT NULL,
		candidate_id INTEGER NOT NULL,
		shown_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shown_pair
		ON shown_candidates(requester_id, target_id);
	`
	_, err := db.Exec(query)
	return err
}
