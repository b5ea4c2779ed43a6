package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const venueColumns = `id, name, address, city, latitude, longitude, created_at`

// VenueStore persists venues in Postgres. Identity is the trimmed
// (name, address) pair, enforced by a unique constraint.
type VenueStore struct {
	pool Pool
}

// NewVenueStore constructs a VenueStore over an existing pool.
func NewVenueStore(pool Pool) *VenueStore {
	return &VenueStore{pool: pool}
}

// CreateVenueIfAbsent inserts the venue unless the (name, address) pair
// already exists, in which case the surviving row is returned instead.
func (s *VenueStore) CreateVenueIfAbsent(ctx context.Context, venue scrape.Venue) (scrape.Venue, bool, error) {
	name := strings.TrimSpace(venue.Name)
	address := strings.TrimSpace(venue.Address)
	insertQuery := `
		INSERT INTO venues (` + venueColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (name, address) DO NOTHING
		RETURNING ` + venueColumns
	created, err := scanVenue(s.pool.QueryRow(ctx, insertQuery,
		venue.ID,
		name,
		address,
		strings.TrimSpace(venue.City),
		venue.Latitude,
		venue.Longitude,
		venue.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return scrape.Venue{}, false, fmt.Errorf("insert venue: %w", err)
	}

	selectQuery := `SELECT ` + venueColumns + ` FROM venues WHERE name = $1 AND address = $2`
	existing, err := scanVenue(s.pool.QueryRow(ctx, selectQuery, name, address))
	if err != nil {
		return scrape.Venue{}, false, fmt.Errorf("select existing venue: %w", err)
	}
	return existing, false, nil
}

// GetVenue fetches a venue by ID.
func (s *VenueStore) GetVenue(ctx context.Context, venueID string) (scrape.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`
	venue, err := scanVenue(s.pool.QueryRow(ctx, query, venueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Venue{}, scrape.ErrNotFound
		}
		return scrape.Venue{}, fmt.Errorf("select venue: %w", err)
	}
	return venue, nil
}

// SetCoordinates writes lat/lng only while the venue has none. The
// IS NULL predicate makes the write-once rule a database-level CAS.
func (s *VenueStore) SetCoordinates(ctx context.Context, venueID string, lat, lng float64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venues SET latitude = $2, longitude = $3
		 WHERE id = $1 AND latitude IS NULL AND longitude IS NULL`,
		venueID, lat, lng,
	)
	if err != nil {
		return false, fmt.Errorf("set venue coordinates: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.GetVenue(ctx, venueID); err != nil {
		return false, err
	}
	return false, nil
}

func scanVenue(row pgx.Row) (scrape.Venue, error) {
	var venue scrape.Venue
	err := row.Scan(
		&venue.ID,
		&venue.Name,
		&venue.Address,
		&venue.City,
		&venue.Latitude,
		&venue.Longitude,
		&venue.CreatedAt,
	)
	if err != nil {
		return scrape.Venue{}, err
	}
	return venue, nil
}
