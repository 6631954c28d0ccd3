// Package store is the SQLite persistence layer. One Store wraps a
// database handle and exposes repository methods grouped by table.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Pass ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; funneling everything through one
	// connection avoids SQLITE_BUSY under the pull/scan goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// A job left running belongs to a process that died mid-pull. Fail it
	// now so the single-flight slot is usable again.
	_, err = db.Exec(`
		UPDATE pull_jobs
		SET status = ?, finished_at = ?, summary = ?
		WHERE status = ?`,
		PullFailed, time.Now().UTC(), "interrupted: process exited mid-pull", PullRunning,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reclaim stale pulls: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
