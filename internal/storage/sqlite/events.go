package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const eventColumns = `id, domain, external_id, job_id, title, description, location,
	start_time, end_time, url, venue_id, created_at, updated_at`

// UpsertEvent inserts or updates inside a transaction, using the same merge
// and content-change rules as the other backends.
func (s *Store) UpsertEvent(ctx context.Context, event scrape.Event) (scrape.Event, bool, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("begin event upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + eventColumns + ` FROM events WHERE domain = ? AND external_id = ?`
	stored, err := scanEvent(tx.QueryRowContext(ctx, query, event.Domain, event.ExternalID))
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			event.ID,
			event.Domain,
			event.ExternalID,
			event.JobID,
			event.Title,
			event.Description,
			event.Location,
			encodeNullTime(event.StartTime),
			encodeNullTime(event.EndTime),
			event.URL,
			event.VenueID,
			encodeTime(event.CreatedAt),
			encodeTime(event.UpdatedAt),
		)
		if err != nil {
			return scrape.Event{}, false, false, fmt.Errorf("insert event: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return scrape.Event{}, false, false, fmt.Errorf("commit event insert: %w", err)
		}
		return event, true, false, nil
	}
	if err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("select event for upsert: %w", err)
	}

	merged := scrape.MergeEvent(stored, event)
	changed := scrape.ContentChanged(stored, merged)
	_, err = tx.ExecContext(ctx,
		`UPDATE events
		 SET job_id = ?, title = ?, description = ?, location = ?,
			 start_time = ?, end_time = ?, url = ?, venue_id = ?, updated_at = ?
		 WHERE id = ?`,
		merged.JobID,
		merged.Title,
		merged.Description,
		merged.Location,
		encodeNullTime(merged.StartTime),
		encodeNullTime(merged.EndTime),
		merged.URL,
		merged.VenueID,
		encodeTime(merged.UpdatedAt),
		merged.ID,
	)
	if err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("update event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return scrape.Event{}, false, false, fmt.Errorf("commit event update: %w", err)
	}
	return merged, false, changed, nil
}

// GetEvent fetches an event by ID.
func (s *Store) GetEvent(ctx context.Context, eventID string) (scrape.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.Event{}, scrape.ErrNotFound
		}
		return scrape.Event{}, fmt.Errorf("select event: %w", err)
	}
	return event, nil
}

func scanEvent(row rowScanner) (scrape.Event, error) {
	var (
		event     scrape.Event
		startTime sql.NullString
		endTime   sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&event.ID,
		&event.Domain,
		&event.ExternalID,
		&event.JobID,
		&event.Title,
		&event.Description,
		&event.Location,
		&startTime,
		&endTime,
		&event.URL,
		&event.VenueID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return scrape.Event{}, err
	}
	if event.StartTime, err = decodeNullTime(startTime); err != nil {
		return scrape.Event{}, err
	}
	if event.EndTime, err = decodeNullTime(endTime); err != nil {
		return scrape.Event{}, err
	}
	if event.CreatedAt, err = decodeTime(createdAt); err != nil {
		return scrape.Event{}, err
	}
	if event.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return scrape.Event{}, err
	}
	return event, nil
}
