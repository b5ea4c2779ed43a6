package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

type eventKey struct {
	domain     string
	externalID string
}

// EventStore provides an in-memory event implementation keyed by
// (domain, external id).
type EventStore struct {
	mu     sync.RWMutex
	events map[string]scrape.Event
	byKey  map[eventKey]string
}

// NewEventStore constructs an EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[string]scrape.Event),
		byKey:  make(map[eventKey]string),
	}
}

// UpsertEvent inserts or updates under the write lock. The lookup, content
// comparison, and write happen atomically.
func (s *EventStore) UpsertEvent(_ context.Context, event scrape.Event) (scrape.Event, bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey{domain: event.Domain, externalID: event.ExternalID}
	if id, ok := s.byKey[key]; ok {
		stored := s.events[id]
		merged := scrape.MergeEvent(stored, event)
		changed := scrape.ContentChanged(stored, merged)
		s.events[id] = merged
		return merged, false, changed, nil
	}
	s.events[event.ID] = event
	s.byKey[key] = event.ID
	return event, true, false, nil
}

// GetEvent fetches an event by ID.
func (s *EventStore) GetEvent(_ context.Context, eventID string) (scrape.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return scrape.Event{}, scrape.ErrNotFound
	}
	return event, nil
}
