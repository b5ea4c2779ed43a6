package geocode

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/scrape-coordinator/internal/metrics"
	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const (
	defaultQueueSize   = 256
	defaultMinInterval = 1500 * time.Millisecond
	defaultMaxAttempts = 3
	defaultBackoff     = 60 * time.Second
)

// Config controls the geocoding worker.
type Config struct {
	// QueueSize bounds the pending venue buffer.
	QueueSize int
	// MinInterval is the spacing between geocoder requests. The default
	// honors Nominatim's one-request-per-1.5s policy.
	MinInterval time.Duration
	// MaxAttempts bounds retries per venue.
	MaxAttempts int
	// Backoff is the fixed wait between attempts.
	Backoff time.Duration
}

// Geocoder resolves an address to coordinates. *Client satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, found bool, err error)
}

// Worker consumes venue ids, geocodes their addresses, and writes
// coordinates back. Geocoding is best effort: failures are logged and the
// venue is abandoned once the attempt budget is spent.
type Worker struct {
	geocoder Geocoder
	venues   scrape.VenueStore
	limiter  *rate.Limiter
	queue    chan string
	logger   *zap.Logger

	maxAttempts int
	backoff     time.Duration

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWorker constructs a Worker; zero config fields fall back to defaults.
func NewWorker(geocoder Geocoder, venues scrape.VenueStore, cfg Config, logger *zap.Logger) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		geocoder:    geocoder,
		venues:      venues,
		limiter:     rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		queue:       make(chan string, cfg.QueueSize),
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       sleepCtx,
	}
}

// Enqueue offers a venue id for geocoding. It never blocks; false means the
// buffer is full and the venue was skipped.
func (w *Worker) Enqueue(venueID string) bool {
	if w == nil || venueID == "" {
		return false
	}
	select {
	case w.queue <- venueID:
		return true
	default:
		return false
	}
}

// Run blocks, processing queued venues until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case venueID := <-w.queue:
			w.process(ctx, venueID)
		}
	}
}

func (w *Worker) process(ctx context.Context, venueID string) {
	venue, err := w.venues.GetVenue(ctx, venueID)
	if err != nil {
		w.logger.Warn("venue lookup for geocoding failed",
			zap.String("venue_id", venueID),
			zap.Error(err))
		return
	}
	if venue.Latitude != nil || venue.Longitude != nil {
		w.logger.Debug("venue already has coordinates", zap.String("venue_id", venueID))
		return
	}
	address := fullAddress(venue)
	if address == "" {
		w.logger.Warn("venue has no address to geocode", zap.String("venue_id", venueID))
		return
	}

	lat, lng, found, err := w.geocodeWithRetry(ctx, venueID, address)
	if err != nil || !found {
		return
	}

	wrote, err := w.venues.SetCoordinates(ctx, venueID, lat, lng)
	if err != nil {
		w.logger.Warn("coordinate write-back failed",
			zap.String("venue_id", venueID),
			zap.Error(err))
		return
	}
	if !wrote {
		w.logger.Debug("coordinates already set, write-back skipped",
			zap.String("venue_id", venueID))
		return
	}
	w.logger.Info("venue geocoded",
		zap.String("venue_id", venueID),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng))
}

// geocodeWithRetry spaces requests via the rate limiter and retries transport
// failures. A definitive empty result is terminal.
func (w *Worker) geocodeWithRetry(ctx context.Context, venueID, address string) (float64, float64, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return 0, 0, false, err
		}
		lat, lng, found, err := w.geocoder.Geocode(ctx, address)
		metrics.ObserveCollaboratorAttempt("geocoding", err == nil)
		if err == nil {
			if !found {
				w.logger.Warn("no geocoding result",
					zap.String("venue_id", venueID),
					zap.String("address", address))
			}
			return lat, lng, found, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, 0, false, ctx.Err()
		}
		w.logger.Warn("geocode attempt failed",
			zap.String("venue_id", venueID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < w.maxAttempts {
			if err := w.sleep(ctx, w.backoff); err != nil {
				return 0, 0, false, err
			}
		}
	}
	w.logger.Warn("geocoding abandoned",
		zap.String("venue_id", venueID),
		zap.Int("attempts", w.maxAttempts),
		zap.Error(lastErr))
	return 0, 0, false, lastErr
}

func fullAddress(venue scrape.Venue) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(venue.Address); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(venue.City); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
