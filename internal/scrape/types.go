package scrape

import "time"

// JobStatus represents the lifecycle state of a scraping job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a job in this status can never transition again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Default priorities assigned at submission time. Lower values are claimed
// first; bulk submissions yield to interactively submitted jobs.
const (
	DefaultPriority = 5
	BatchPriority   = 7
)

// Job represents one scraping attempt for a URL.
type Job struct {
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Domain string    `json:"domain"`
	Status JobStatus `json:"status"`
	// StrategyUsed is an immutable snapshot of the domain's best selectors
	// taken at creation time, not a live reference to the Strategy.
	StrategyUsed []string   `json:"strategy_used,omitempty"`
	Priority     int        `json:"priority"`
	SubmittedBy  string     `json:"submitted_by,omitempty"`
	LockedBy     string     `json:"locked_by,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	// Result fields, populated only by a report.
	EventsFound    int    `json:"events_found"`
	PagesProcessed int    `json:"pages_processed"`
	ProcessingMs   int64  `json:"processing_time_ms"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Strategy holds the learned extraction heuristics and rolling success
// metrics for one domain.
type Strategy struct {
	Domain                 string     `json:"domain"`
	BestSelectors          []string   `json:"best_selectors"`
	PaginationPattern      string     `json:"pagination_pattern,omitempty"`
	CancellationIndicators []string   `json:"cancellation_indicators,omitempty"`
	Notes                  string     `json:"notes,omitempty"`
	TotalAttempts          int        `json:"total_attempts"`
	SuccessfulAttempts     int        `json:"successful_attempts"`
	LastSuccessful         *time.Time `json:"last_successful,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// SuccessRate derives the rolling success ratio from the counters. It is
// never stored, so it cannot go stale relative to the attempt counts.
func (s Strategy) SuccessRate() float64 {
	if s.TotalAttempts <= 0 {
		return 0.0
	}
	return float64(s.SuccessfulAttempts) / float64(s.TotalAttempts)
}

// StrategyPatch carries a partial strategy update. Nil fields are left
// untouched. Success, when set, additionally applies the attempt-counter
// feedback in the same write.
type StrategyPatch struct {
	BestSelectors          *[]string `json:"best_selectors,omitempty"`
	PaginationPattern      *string   `json:"pagination_pattern,omitempty"`
	CancellationIndicators *[]string `json:"cancellation_indicators,omitempty"`
	Notes                  *string   `json:"notes,omitempty"`
	Success                *bool     `json:"success,omitempty"`
}

// Empty reports whether the patch carries neither fields nor an outcome.
func (p StrategyPatch) Empty() bool {
	return p.BestSelectors == nil &&
		p.PaginationPattern == nil &&
		p.CancellationIndicators == nil &&
		p.Notes == nil &&
		p.Success == nil
}

// Batch is a submission cohort. JobIDs is fixed at creation, in input order,
// and never mutated afterward even as member jobs change status.
type Batch struct {
	ID          string    `json:"id"`
	SubmittedBy string    `json:"submitted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	JobIDs      []string  `json:"job_ids"`
}

// Event is one extracted event record, upserted by (Domain, ExternalID).
type Event struct {
	ID          string     `json:"id"`
	Domain      string     `json:"domain"`
	ExternalID  string     `json:"external_id"`
	JobID       string     `json:"job_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	URL         string     `json:"url,omitempty"`
	VenueID     string     `json:"venue_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Venue is a physical place referenced by events. Coordinates are written
// once by the geocoder and never overwritten.
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRecord is an extracted event as reported by the collector.
type EventRecord struct {
	ExternalID  string       `json:"external_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Location    string       `json:"location,omitempty"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	URL         string       `json:"url,omitempty"`
	Venue       *VenueRecord `json:"venue,omitempty"`
}

// VenueRecord is the venue block optionally attached to an event record.
type VenueRecord struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
}

// Report is the full result payload a worker submits for a leased job.
type Report struct {
	Success        bool          `json:"success"`
	EventsFound    int           `json:"events_found"`
	PagesProcessed int           `json:"pages_processed"`
	ProcessingMs   int64         `json:"processing_time_ms"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Events         []EventRecord `json:"events,omitempty"`
}

// JobOutcome is the subset of a report persisted onto the job row itself.
type JobOutcome struct {
	Success        bool
	EventsFound    int
	PagesProcessed int
	ProcessingMs   int64
	ErrorMessage   string
}

// Outcome extracts the job-row fields from a report.
func (r Report) Outcome() JobOutcome {
	return JobOutcome{
		Success:        r.Success,
		EventsFound:    r.EventsFound,
		PagesProcessed: r.PagesProcessed,
		ProcessingMs:   r.ProcessingMs,
		ErrorMessage:   r.ErrorMessage,
	}
}

// ReportResult is returned to the reporting worker.
type ReportResult struct {
	CreatedEventIDs []string `json:"created_event_ids"`
}

// QueueStatus is a read-only rollup of queue health.
type QueueStatus struct {
	QueueDepth   int `json:"queue_depth"`
	Processing   int `json:"processing"`
	Completed24h int `json:"completed_24h"`
	Failed24h    int `json:"failed_24h"`
}
