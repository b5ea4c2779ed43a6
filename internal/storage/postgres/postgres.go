// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls the Postgres connection pool shared by the stores.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the slice of pgxpool.Pool the stores need. pgxmock satisfies it,
// so every store can be exercised without a database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Connect builds a pgx pool from the config.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Schema is the DDL for every coordinator table. Statements are idempotent
// so EnsureSchema can run on every boot.
const Schema = `
CREATE TABLE IF NOT EXISTS scrape_jobs (
	id              TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	domain          TEXT NOT NULL,
	status          TEXT NOT NULL,
	strategy_used   TEXT[] NOT NULL DEFAULT '{}',
	priority        INT NOT NULL,
	submitted_by    TEXT NOT NULL DEFAULT '',
	locked_by       TEXT NOT NULL DEFAULT '',
	locked_at       TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ,
	events_found    INT NOT NULL DEFAULT 0,
	pages_processed INT NOT NULL DEFAULT 0,
	processing_ms   BIGINT NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS scrape_jobs_url_idx ON scrape_jobs (url);
CREATE INDEX IF NOT EXISTS scrape_jobs_claim_idx ON scrape_jobs (status, priority, created_at, id);

CREATE TABLE IF NOT EXISTS scrape_strategies (
	domain                  TEXT PRIMARY KEY,
	best_selectors          TEXT[] NOT NULL DEFAULT '{}',
	pagination_pattern      TEXT NOT NULL DEFAULT '',
	cancellation_indicators TEXT[] NOT NULL DEFAULT '{}',
	notes                   TEXT NOT NULL DEFAULT '',
	total_attempts          INT NOT NULL DEFAULT 0,
	successful_attempts     INT NOT NULL DEFAULT 0,
	last_successful         TIMESTAMPTZ,
	updated_at              TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_batches (
	id           TEXT PRIMARY KEY,
	submitted_by TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	job_ids      TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	external_id TEXT NOT NULL,
	job_id      TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	start_time  TIMESTAMPTZ,
	end_time    TIMESTAMPTZ,
	url         TEXT NOT NULL DEFAULT '',
	venue_id    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (domain, external_id)
);

CREATE TABLE IF NOT EXISTS venues (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (name, address)
);
`

// EnsureSchema applies the coordinator DDL.
func EnsureSchema(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
