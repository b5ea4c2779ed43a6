package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const eventColumns = `id, domain, external_id, job_id, title, description, location,
	start_time, end_time, url, venue_id, created_at, updated_at`

// EventStore persists extracted events in Postgres, keyed by
// (domain, external_id).
type EventStore struct {
	pool Pool
}

// NewEventStore constructs an EventStore over an existing pool.
func NewEventStore(pool Pool) *EventStore {
	return &EventStore{pool: pool}
}

// UpsertEvent inserts or updates inside a transaction. The existing row is
// locked first so the content comparison and the write see the same state.
func (s *EventStore) UpsertEvent(ctx context.Context, event scrape.Event) (scrape.Event, bool, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("begin event upsert: %w", err)
	}
	stored, created, changed, err := upsertEventTx(ctx, tx, event)
	if err != nil {
		_ = tx.Rollback(ctx)
		return scrape.Event{}, false, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("commit event upsert: %w", err)
	}
	return stored, created, changed, nil
}

func upsertEventTx(ctx context.Context, tx pgx.Tx, event scrape.Event) (scrape.Event, bool, bool, error) {
	selectQuery := `SELECT ` + eventColumns + ` FROM events WHERE domain = $1 AND external_id = $2 FOR UPDATE`
	stored, err := scanEvent(tx.QueryRow(ctx, selectQuery, event.Domain, event.ExternalID))
	if errors.Is(err, pgx.ErrNoRows) {
		insertQuery := `
			INSERT INTO events (` + eventColumns + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
		_, err = tx.Exec(ctx, insertQuery,
			event.ID,
			event.Domain,
			event.ExternalID,
			event.JobID,
			event.Title,
			event.Description,
			event.Location,
			event.StartTime,
			event.EndTime,
			event.URL,
			event.VenueID,
			event.CreatedAt,
			event.UpdatedAt,
		)
		if err != nil {
			return scrape.Event{}, false, false, fmt.Errorf("insert event: %w", err)
		}
		return event, true, false, nil
	}
	if err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("select event for update: %w", err)
	}

	merged := scrape.MergeEvent(stored, event)
	changed := scrape.ContentChanged(stored, merged)
	updateQuery := `
		UPDATE events
		SET job_id = $2, title = $3, description = $4, location = $5,
			start_time = $6, end_time = $7, url = $8, venue_id = $9, updated_at = $10
		WHERE id = $1`
	_, err = tx.Exec(ctx, updateQuery,
		merged.ID,
		merged.JobID,
		merged.Title,
		merged.Description,
		merged.Location,
		merged.StartTime,
		merged.EndTime,
		merged.URL,
		merged.VenueID,
		merged.UpdatedAt,
	)
	if err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("update event: %w", err)
	}
	return merged, false, changed, nil
}

// GetEvent fetches an event by ID.
func (s *EventStore) GetEvent(ctx context.Context, eventID string) (scrape.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, err := scanEvent(s.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Event{}, scrape.ErrNotFound
		}
		return scrape.Event{}, fmt.Errorf("select event: %w", err)
	}
	return event, nil
}

func scanEvent(row pgx.Row) (scrape.Event, error) {
	var event scrape.Event
	err := row.Scan(
		&event.ID,
		&event.Domain,
		&event.ExternalID,
		&event.JobID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.StartTime,
		&event.EndTime,
		&event.URL,
		&event.VenueID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return scrape.Event{}, err
	}
	return event, nil
}
