package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

type venueKey struct {
	name    string
	address string
}

// VenueStore provides an in-memory venue implementation.
type VenueStore struct {
	mu     sync.RWMutex
	venues map[string]scrape.Venue
	byKey  map[venueKey]string
}

// NewVenueStore constructs a VenueStore.
func NewVenueStore() *VenueStore {
	return &VenueStore{
		venues: make(map[string]scrape.Venue),
		byKey:  make(map[venueKey]string),
	}
}

// CreateVenueIfAbsent inserts the venue unless one exists for the same
// trimmed (name, address); the surviving record is returned either way.
func (s *VenueStore) CreateVenueIfAbsent(_ context.Context, venue scrape.Venue) (scrape.Venue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := venueKey{
		name:    strings.TrimSpace(venue.Name),
		address: strings.TrimSpace(venue.Address),
	}
	if id, ok := s.byKey[key]; ok {
		return s.venues[id], false, nil
	}
	s.venues[venue.ID] = venue
	s.byKey[key] = venue.ID
	return venue, true, nil
}

// GetVenue fetches a venue by ID.
func (s *VenueStore) GetVenue(_ context.Context, venueID string) (scrape.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	venue, ok := s.venues[venueID]
	if !ok {
		return scrape.Venue{}, scrape.ErrNotFound
	}
	return venue, nil
}

// SetCoordinates writes lat/lng only while the venue has none; later writers
// observe false and leave the stored coordinates alone.
func (s *VenueStore) SetCoordinates(_ context.Context, venueID string, lat, lng float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	venue, ok := s.venues[venueID]
	if !ok {
		return false, scrape.ErrNotFound
	}
	if venue.Latitude != nil || venue.Longitude != nil {
		return false, nil
	}
	venue.Latitude = &lat
	venue.Longitude = &lng
	s.venues[venueID] = venue
	return true, nil
}
