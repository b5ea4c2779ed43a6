package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const venueColumns = `id, name, address, city, latitude, longitude, created_at`

// CreateVenueIfAbsent inserts the venue unless the trimmed (name, address)
// pair already exists; the surviving row is returned either way.
func (s *Store) CreateVenueIfAbsent(ctx context.Context, venue scrape.Venue) (scrape.Venue, bool, error) {
	name := strings.TrimSpace(venue.Name)
	address := strings.TrimSpace(venue.Address)

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO venues (`+venueColumns+`) VALUES (?,?,?,?,?,?,?)`,
		venue.ID, name, address, strings.TrimSpace(venue.City),
		venue.Latitude, venue.Longitude, encodeTime(venue.CreatedAt),
	)
	if err != nil {
		return scrape.Venue{}, false, fmt.Errorf("insert venue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return scrape.Venue{}, false, fmt.Errorf("insert venue rows affected: %w", err)
	}

	stored, err := s.venueByIdentity(ctx, name, address)
	if err != nil {
		return scrape.Venue{}, false, err
	}
	return stored, affected > 0, nil
}

// GetVenue fetches a venue by ID.
func (s *Store) GetVenue(ctx context.Context, venueID string) (scrape.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`
	venue, err := scanVenue(s.db.QueryRowContext(ctx, query, venueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.Venue{}, scrape.ErrNotFound
		}
		return scrape.Venue{}, fmt.Errorf("select venue: %w", err)
	}
	return venue, nil
}

// SetCoordinates writes lat/lng only while the venue has none.
func (s *Store) SetCoordinates(ctx context.Context, venueID string, lat, lng float64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE venues SET latitude = ?, longitude = ?
		 WHERE id = ? AND latitude IS NULL AND longitude IS NULL`,
		lat, lng, venueID,
	)
	if err != nil {
		return false, fmt.Errorf("set venue coordinates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set venue coordinates rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}
	if _, err := s.GetVenue(ctx, venueID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) venueByIdentity(ctx context.Context, name, address string) (scrape.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE name = ? AND address = ?`
	venue, err := scanVenue(s.db.QueryRowContext(ctx, query, name, address))
	if err != nil {
		return scrape.Venue{}, fmt.Errorf("select venue by identity: %w", err)
	}
	return venue, nil
}

func scanVenue(row rowScanner) (scrape.Venue, error) {
	var (
		venue     scrape.Venue
		createdAt string
	)
	err := row.Scan(
		&venue.ID,
		&venue.Name,
		&venue.Address,
		&venue.City,
		&venue.Latitude,
		&venue.Longitude,
		&createdAt,
	)
	if err != nil {
		return scrape.Venue{}, err
	}
	if venue.CreatedAt, err = decodeTime(createdAt); err != nil {
		return scrape.Venue{}, err
	}
	return venue, nil
}
