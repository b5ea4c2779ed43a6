package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// VenueQueue accepts venue ids for background geocoding. internal/geocode
// provides the rate-limited worker implementation.
type VenueQueue interface {
	Enqueue(venueID string) bool
}

// GeocodeSink hands newly created venue ids to the geocoding worker. The
// worker owns rate limiting and retries; the sink only enqueues.
type GeocodeSink struct {
	queue  VenueQueue
	logger *zap.Logger
}

// NewGeocodeSink constructs a GeocodeSink over the given queue.
func NewGeocodeSink(queue VenueQueue, logger *zap.Logger) *GeocodeSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeocodeSink{queue: queue, logger: logger}
}

// Consume enqueues every VENUE_CREATED notification. A full queue is logged
// and the venue skipped; it can be re-geocoded by a later sweep.
func (s *GeocodeSink) Consume(_ context.Context, batch []scrape.Notification) error {
	if s == nil || s.queue == nil {
		return nil
	}
	for _, n := range batch {
		if n.Kind != scrape.NotifyVenueCreated || n.VenueID == "" {
			continue
		}
		if !s.queue.Enqueue(n.VenueID) {
			s.logger.Warn("geocode queue full, venue skipped",
				zap.String("venue_id", n.VenueID))
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *GeocodeSink) Close(context.Context) error {
	return nil
}
