// Package sqlite provides an embedded single-node backend over
// modernc.org/sqlite. It implements the same store contracts as the
// Postgres backend, so single-host deployments need no database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store implements every coordinator store over one sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	// modernc sqlite takes pragmas in the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= 1 {
		return tx.Commit()
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS scrape_jobs (
			id              TEXT PRIMARY KEY,
			url             TEXT NOT NULL,
			domain          TEXT NOT NULL,
			status          TEXT NOT NULL,
			strategy_used   TEXT NOT NULL DEFAULT '[]',
			priority        INTEGER NOT NULL,
			submitted_by    TEXT NOT NULL DEFAULT '',
			locked_by       TEXT NOT NULL DEFAULT '',
			locked_at       TEXT,
			created_at      TEXT NOT NULL,
			completed_at    TEXT,
			events_found    INTEGER NOT NULL DEFAULT 0,
			pages_processed INTEGER NOT NULL DEFAULT 0,
			processing_ms   INTEGER NOT NULL DEFAULT 0,
			error_message   TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_url ON scrape_jobs(url);`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_claim ON scrape_jobs(status, priority, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS scrape_strategies (
			domain                  TEXT PRIMARY KEY,
			best_selectors          TEXT NOT NULL DEFAULT '[]',
			pagination_pattern      TEXT NOT NULL DEFAULT '',
			cancellation_indicators TEXT NOT NULL DEFAULT '[]',
			notes                   TEXT NOT NULL DEFAULT '',
			total_attempts          INTEGER NOT NULL DEFAULT 0,
			successful_attempts     INTEGER NOT NULL DEFAULT 0,
			last_successful         TEXT,
			updated_at              TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scrape_batches (
			id           TEXT PRIMARY KEY,
			submitted_by TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			job_ids      TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			domain      TEXT NOT NULL,
			external_id TEXT NOT NULL,
			job_id      TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			start_time  TEXT,
			end_time    TEXT,
			url         TEXT NOT NULL DEFAULT '',
			venue_id    TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_identity ON events(domain, external_id);`,
		`CREATE TABLE IF NOT EXISTS venues (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			address    TEXT NOT NULL DEFAULT '',
			city       TEXT NOT NULL DEFAULT '',
			latitude   REAL,
			longitude  REAL,
			created_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_venues_identity ON venues(name, address);`,
		`PRAGMA user_version = 1;`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}

// Lists are stored JSON-encoded; sqlite has no array type.

func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// Timestamps are stored as fixed-width RFC3339 text. The padded fraction
// keeps lexicographic order equal to chronological order, which the claim
// index and the 24h rollup comparisons rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func encodeNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := decodeTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
