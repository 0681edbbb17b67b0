// Package store provides SQLite-backed persistence for conversations and
// wake events.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"database/sql"

	_ "modernc.org/sqlite"
)

// timeFormat is the persisted timestamp layout. Values are always UTC so
// lexicographic order over the stored strings equals chronological order.
const timeFormat = time.RFC3339

// DB wraps the shared SQLite handle. The conversation and wake-event stores
// operate on the same database file but serialize access independently.
type DB struct {
	sql  *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// initializes the schema.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers; busy timeout covers short write contention.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{sql: db, path: dbPath}
	if err := d.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return d, nil
}

func (d *DB) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		title TEXT,
		system_prompt TEXT,
		messages TEXT NOT NULL,
		message_count INTEGER DEFAULT 0,
		token_usage TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session_id ON conversations(session_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at);

	CREATE TABLE IF NOT EXISTS wake_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		event_time TEXT NOT NULL,
		trigger_type TEXT NOT NULL CHECK(trigger_type IN ('wake_word', 'manual')),
		success INTEGER DEFAULT 1,
		audio_duration REAL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_wake_events_session_id ON wake_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_wake_events_event_time ON wake_events(event_time);
	CREATE INDEX IF NOT EXISTS idx_wake_events_trigger_type ON wake_events(trigger_type);
	`
	if _, err := d.sql.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Size returns the database file size in bytes. A missing file counts as zero.
func (d *DB) Size() int64 {
	info, err := os.Stat(d.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database connection.
func (d *DB) Close() error {
	if err := d.sql.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// now returns the current time formatted for persistence.
func now() string {
	return time.Now().UTC().Format(timeFormat)
}

// today returns the current UTC date in YYYY-MM-DD form.
func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// daysAgo returns the UTC timestamp string for now minus the given days.
func daysAgo(days int) string {
	return time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format(timeFormat)
}

// dateDaysAgo returns the UTC date string for today minus the given days.
func dateDaysAgo(days int) string {
	return time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format("2006-01-02")
}
