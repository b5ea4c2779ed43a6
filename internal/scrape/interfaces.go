package scrape

import (
	"context"
	"time"
)

// JobStore persists jobs and owns the atomic lifecycle transitions.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)

	// FindJobsByURL returns every job ever created for the exact URL, in no
	// particular order. Used by the dedup policy.
	FindJobsByURL(ctx context.Context, url string) ([]Job, error)

	// Lease atomically moves a pending job to processing and records the
	// owner. Exactly one of two racing callers succeeds; the loser gets
	// ErrAlreadyLocked. Terminal jobs yield ErrInvalidTransition.
	Lease(ctx context.Context, jobID, workerID string, at time.Time) (Job, error)

	// LeaseNext claims the pending job with the lowest priority value,
	// oldest first on ties. ErrNoPendingJobs when the queue is empty.
	LeaseNext(ctx context.Context, workerID string, at time.Time) (Job, error)

	// Finish moves a processing job to its terminal state and records the
	// outcome fields. ErrInvalidState unless the job is processing.
	Finish(ctx context.Context, jobID string, outcome JobOutcome, at time.Time) (Job, error)

	CountByStatus(ctx context.Context, status JobStatus) (int, error)

	// CountFinishedSince counts jobs in the given terminal status whose
	// completion time is at or after since.
	CountFinishedSince(ctx context.Context, status JobStatus, since time.Time) (int, error)
}

// StrategyStore persists per-domain extraction strategies.
type StrategyStore interface {
	// GetStrategy returns ErrNotFound for a domain never written to:
	// absence of knowledge, not an empty record.
	GetStrategy(ctx context.Context, domain string) (Strategy, error)

	// ApplyStrategyReport upserts the domain's strategy: patch fields are
	// applied where non-nil, and when patch.Success is set the attempt
	// counters are incremented in the same atomic write. Concurrent reports
	// for one domain must not lose increments.
	ApplyStrategyReport(ctx context.Context, domain string, patch StrategyPatch, at time.Time) (Strategy, error)
}

// BatchStore persists submission cohorts.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch Batch) error
	GetBatch(ctx context.Context, batchID string) (Batch, error)
}

// EventStore persists extracted events keyed by (domain, external id).
type EventStore interface {
	// UpsertEvent inserts event when the key is new (keeping event.ID) or
	// updates the existing record (keeping the stored ID). It reports
	// whether the event was created and, on update, whether a
	// content-bearing field changed.
	UpsertEvent(ctx context.Context, event Event) (stored Event, created bool, contentChanged bool, err error)
	GetEvent(ctx context.Context, eventID string) (Event, error)
}

// VenueStore persists venues and the geocoder's write-back.
type VenueStore interface {
	// CreateVenueIfAbsent inserts venue unless one already exists for the
	// same trimmed (name, address); it returns the surviving record.
	CreateVenueIfAbsent(ctx context.Context, venue Venue) (Venue, bool, error)
	GetVenue(ctx context.Context, venueID string) (Venue, error)

	// SetCoordinates writes lat/lng only while the venue has none; it
	// reports whether the write happened.
	SetCoordinates(ctx context.Context, venueID string, lat, lng float64) (bool, error)
}

// BlobStore writes raw artifacts, such as archived report payloads, and
// returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes terminal-job announcements to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Emitter accepts milestone notifications. Implementations must never block
// the caller; the hub in internal/notify satisfies this.
type Emitter interface {
	Emit(n Notification)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces ids for jobs, batches, events, and venues.
type IDGenerator interface {
	NewID() (string, error)
}
