// Package journal persists backend lifecycle events (state changes, start
// attempts, failures) so the diagnostics panel can show history across runs.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Events older than this are dropped when the journal is opened.
const retention = 30 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    event   TEXT NOT NULL,
    detail  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_lifecycle_events_at ON lifecycle_events(at);
`

// Entry is one recorded lifecycle event.
type Entry struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Detail string    `json:"detail"`
}

type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// SQLite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init journal schema: %w", err)
	}

	j := &Journal{db: db}
	// Bound the database; a failed prune is not worth refusing to open.
	if err := j.Prune(retention); err != nil {
		log.Printf("Warning: journal prune failed: %v", err)
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends one event. Journal writes are advisory; failures get logged
// and swallowed so lifecycle handling never stalls on diagnostics.
func (j *Journal) Record(event, detail string) {
	if j == nil || j.db == nil {
		return
	}
	if _, err := j.db.Exec(
		"INSERT INTO lifecycle_events (at, event, detail) VALUES (?, ?, ?)",
		time.Now().UTC(), event, detail,
	); err != nil {
		log.Printf("Warning: journal write failed: %v", err)
	}
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		"SELECT id, at, event, detail FROM lifecycle_events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Event, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune drops events older than keep, bounding the database size.
func (j *Journal) Prune(keep time.Duration) error {
	if j == nil || j.db == nil {
		return nil
	}
	cutoff := time.Now().UTC().Add(-keep)
	_, err := j.db.Exec("DELETE FROM lifecycle_events WHERE at < ?", cutoff)
	return err
}
