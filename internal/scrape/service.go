package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/metrics"
)

// Options tunes coordination policy.
type Options struct {
	// DedupWindow bounds how long a completed job keeps satisfying
	// resubmissions of its URL. Zero means DefaultDedupWindow.
	DedupWindow time.Duration
	// DefaultPriority is assigned to single submissions, BatchPriority to
	// bulk submission members. Lower values are leased first.
	DefaultPriority int
	BatchPriority   int
}

// Service implements the coordination operations over the injected stores.
// It is safe for concurrent use when the stores are.
type Service struct {
	jobs       JobStore
	strategies StrategyStore
	batches    BatchStore
	events     EventStore
	venues     VenueStore
	emitter    Emitter
	clock      Clock
	ids        IDGenerator
	opts       Options
	logger     *zap.Logger
}

// NewService constructs a Service. The emitter may be nil when no sinks are
// configured; every other dependency is required.
func NewService(
	jobs JobStore,
	strategies StrategyStore,
	batches BatchStore,
	events EventStore,
	venues VenueStore,
	emitter Emitter,
	clock Clock,
	ids IDGenerator,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.DefaultPriority <= 0 {
		opts.DefaultPriority = DefaultPriority
	}
	if opts.BatchPriority <= 0 {
		opts.BatchPriority = BatchPriority
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		jobs:       jobs,
		strategies: strategies,
		batches:    batches,
		events:     events,
		venues:     venues,
		emitter:    emitter,
		clock:      clock,
		ids:        ids,
		opts:       opts,
		logger:     logger,
	}
}

// Submit queues a scraping job for rawURL unless the dedup policy finds a
// reusable one. The bool result reports reuse; a reused submission creates
// no job and touches no counters.
func (s *Service) Submit(ctx context.Context, rawURL, submittedBy string) (Job, bool, error) {
	if err := ValidateScrapeURL(rawURL); err != nil {
		return Job{}, false, err
	}
	return s.submit(ctx, rawURL, submittedBy, s.opts.DefaultPriority)
}

// SubmitBatch applies the single-submission path to every URL in input order
// and records the resulting ids as a fixed cohort. A URL repeated within the
// batch dedups against the job created earlier in the same call. The whole
// batch is rejected before any job is created if any URL fails validation.
func (s *Service) SubmitBatch(ctx context.Context, urls []string, submittedBy string) (Batch, error) {
	if len(urls) == 0 {
		return Batch{}, validationf("batch requires at least one url")
	}
	for _, rawURL := range urls {
		if err := ValidateScrapeURL(rawURL); err != nil {
			return Batch{}, err
		}
	}

	jobIDs := make([]string, 0, len(urls))
	for _, rawURL := range urls {
		job, _, err := s.submit(ctx, rawURL, submittedBy, s.opts.BatchPriority)
		if err != nil {
			return Batch{}, err
		}
		jobIDs = append(jobIDs, job.ID)
	}

	batchID, err := s.ids.NewID()
	if err != nil {
		return Batch{}, fmt.Errorf("generate batch id: %w", err)
	}
	batch := Batch{
		ID:          batchID,
		SubmittedBy: submittedBy,
		CreatedAt:   s.clock.Now(),
		JobIDs:      jobIDs,
	}
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return Batch{}, fmt.Errorf("create batch: %w", err)
	}
	s.logger.Info("batch queued",
		zap.String("batch_id", batchID),
		zap.Int("jobs", len(jobIDs)),
		zap.String("submitted_by", submittedBy),
	)
	return batch, nil
}

func (s *Service) submit(ctx context.Context, rawURL, submittedBy string, priority int) (Job, bool, error) {
	now := s.clock.Now()
	candidates, err := s.jobs.FindJobsByURL(ctx, rawURL)
	if err != nil {
		return Job{}, false, fmt.Errorf("find jobs by url: %w", err)
	}
	if job, ok := ReusableJob(candidates, now, s.opts.DedupWindow); ok {
		metrics.ObserveSubmission("reused")
		s.logger.Debug("submission satisfied by existing job",
			zap.String("job_id", job.ID),
			zap.String("url", rawURL),
			zap.String("status", string(job.Status)),
		)
		return job, true, nil
	}

	domain := ResolveDomain(rawURL)
	snapshot, err := s.strategySnapshot(ctx, domain)
	if err != nil {
		return Job{}, false, err
	}
	jobID, err := s.ids.NewID()
	if err != nil {
		return Job{}, false, fmt.Errorf("generate job id: %w", err)
	}
	job := Job{
		ID:           jobID,
		URL:          rawURL,
		Domain:       domain,
		Status:       JobStatusPending,
		StrategyUsed: snapshot,
		Priority:     priority,
		SubmittedBy:  submittedBy,
		CreatedAt:    now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return Job{}, false, fmt.Errorf("create job: %w", err)
	}
	metrics.ObserveSubmission("created")
	s.logger.Info("job queued",
		zap.String("job_id", jobID),
		zap.String("domain", domain),
		zap.Int("priority", priority),
	)
	return job, false, nil
}

// strategySnapshot copies the domain's current best selectors so the job
// keeps what was known at attempt time even if the strategy changes later.
func (s *Service) strategySnapshot(ctx context.Context, domain string) ([]string, error) {
	if domain == "" {
		return nil, nil
	}
	strat, err := s.strategies.GetStrategy(ctx, domain)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("strategy snapshot: %w", err)
	}
	if len(strat.BestSelectors) == 0 {
		return nil, nil
	}
	return append([]string(nil), strat.BestSelectors...), nil
}

// GetJob returns the job or ErrNotFound.
func (s *Service) GetJob(ctx context.Context, jobID string) (Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// Lease claims the named pending job for workerID. Exactly one of two racing
// callers wins; the loser observes ErrAlreadyLocked.
func (s *Service) Lease(ctx context.Context, jobID, workerID string) (Job, error) {
	if strings.TrimSpace(workerID) == "" {
		return Job{}, validationf("worker id is required")
	}
	job, err := s.jobs.Lease(ctx, jobID, workerID, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			metrics.ObserveLeaseConflict()
		}
		return Job{}, fmt.Errorf("lease job %s: %w", jobID, err)
	}
	s.logger.Info("job leased",
		zap.String("job_id", job.ID),
		zap.String("worker_id", workerID),
	)
	return job, nil
}

// LeaseNext claims the most urgent pending job for workerID, or
// ErrNoPendingJobs when the queue is empty.
func (s *Service) LeaseNext(ctx context.Context, workerID string) (Job, error) {
	if strings.TrimSpace(workerID) == "" {
		return Job{}, validationf("worker id is required")
	}
	job, err := s.jobs.LeaseNext(ctx, workerID, s.clock.Now())
	if err != nil {
		return Job{}, fmt.Errorf("lease next job: %w", err)
	}
	s.logger.Info("job leased",
		zap.String("job_id", job.ID),
		zap.String("worker_id", workerID),
	)
	return job, nil
}

// Report records a worker's result for a processing job: the terminal
// transition commits first, then event records are upserted (per-record
// failures are logged and skipped), then sinks are notified. Returns the ids
// of newly created events.
func (s *Service) Report(ctx context.Context, jobID string, report Report) (ReportResult, error) {
	now := s.clock.Now()
	job, err := s.jobs.Finish(ctx, jobID, report.Outcome(), now)
	if err != nil {
		return ReportResult{}, fmt.Errorf("finish job %s: %w", jobID, err)
	}
	metrics.ObserveJobFinished(string(job.Status))
	if report.ProcessingMs > 0 {
		metrics.ObserveProcessingDuration(time.Duration(report.ProcessingMs) * time.Millisecond)
	}

	createdIDs, embedIDs := s.recordEvents(ctx, job, report.Events, now)

	s.emit(Notification{
		Kind:   notificationKind(job.Status),
		TS:     now,
		Job:    &job,
		Report: &report,
		Domain: job.Domain,
	})
	if len(embedIDs) > 0 {
		s.emit(Notification{
			Kind:     NotifyEventsRecorded,
			TS:       now,
			Domain:   job.Domain,
			EventIDs: embedIDs,
		})
	}

	s.logger.Info("job reported",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("events_found", report.EventsFound),
		zap.Int("events_created", len(createdIDs)),
	)
	return ReportResult{CreatedEventIDs: createdIDs}, nil
}

func (s *Service) recordEvents(ctx context.Context, job Job, records []EventRecord, now time.Time) (createdIDs, embedIDs []string) {
	for _, rec := range records {
		if rec.ExternalID == "" || rec.Title == "" {
			s.logger.Warn("skipping event record without identity",
				zap.String("job_id", job.ID),
				zap.String("external_id", rec.ExternalID),
			)
			continue
		}
		eventID, err := s.ids.NewID()
		if err != nil {
			s.logger.Error("generate event id failed", zap.Error(err))
			continue
		}
		event := Event{
			ID:          eventID,
			Domain:      job.Domain,
			ExternalID:  rec.ExternalID,
			JobID:       job.ID,
			Title:       rec.Title,
			Description: rec.Description,
			Location:    rec.Location,
			StartTime:   rec.StartTime,
			EndTime:     rec.EndTime,
			URL:         rec.URL,
			VenueID:     s.ensureVenue(ctx, rec.Venue, now),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		stored, created, changed, err := s.events.UpsertEvent(ctx, event)
		if err != nil {
			s.logger.Error("upsert event failed",
				zap.String("job_id", job.ID),
				zap.String("external_id", rec.ExternalID),
				zap.Error(err),
			)
			continue
		}
		if created {
			createdIDs = append(createdIDs, stored.ID)
			embedIDs = append(embedIDs, stored.ID)
			metrics.ObserveEventRecorded("created")
			continue
		}
		metrics.ObserveEventRecorded("updated")
		if changed {
			embedIDs = append(embedIDs, stored.ID)
		}
	}
	return createdIDs, embedIDs
}

func (s *Service) ensureVenue(ctx context.Context, rec *VenueRecord, now time.Time) string {
	if rec == nil || strings.TrimSpace(rec.Name) == "" {
		return ""
	}
	venueID, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("generate venue id failed", zap.Error(err))
		return ""
	}
	venue := Venue{
		ID:        venueID,
		Name:      strings.TrimSpace(rec.Name),
		Address:   strings.TrimSpace(rec.Address),
		City:      strings.TrimSpace(rec.City),
		CreatedAt: now,
	}
	stored, created, err := s.venues.CreateVenueIfAbsent(ctx, venue)
	if err != nil {
		s.logger.Error("create venue failed",
			zap.String("name", venue.Name),
			zap.Error(err),
		)
		return ""
	}
	if created {
		s.emit(Notification{Kind: NotifyVenueCreated, TS: now, VenueID: stored.ID})
	}
	return stored.ID
}

// GetStrategy returns the learned strategy for domain or ErrNotFound when
// the domain has never been written to.
func (s *Service) GetStrategy(ctx context.Context, domain string) (Strategy, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return Strategy{}, err
	}
	strat, err := s.strategies.GetStrategy(ctx, domain)
	if err != nil {
		return Strategy{}, fmt.Errorf("get strategy %s: %w", domain, err)
	}
	return strat, nil
}

// ReportStrategy applies a field update and, when patch.Success is set, the
// attempt-counter feedback, both in one write so nothing double counts.
// Creates the strategy when absent.
func (s *Service) ReportStrategy(ctx context.Context, domain string, patch StrategyPatch) (Strategy, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return Strategy{}, err
	}
	strat, err := s.strategies.ApplyStrategyReport(ctx, domain, patch, s.clock.Now())
	if err != nil {
		return Strategy{}, fmt.Errorf("apply strategy report %s: %w", domain, err)
	}
	s.logger.Debug("strategy updated",
		zap.String("domain", domain),
		zap.Bool("with_outcome", patch.Success != nil),
		zap.Int("total_attempts", strat.TotalAttempts),
	)
	return strat, nil
}

// UpdateStrategyFields applies only the field overrides. Any success flag in
// the payload is discarded so the counters stay untouched.
func (s *Service) UpdateStrategyFields(ctx context.Context, domain string, patch StrategyPatch) (Strategy, error) {
	patch.Success = nil
	return s.ReportStrategy(ctx, domain, patch)
}

// GetBatchStatus returns the batch and the current state of every member
// job, in the order they were submitted. Read-only.
func (s *Service) GetBatchStatus(ctx context.Context, batchID string) (Batch, []Job, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return Batch{}, nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}
	jobs := make([]Job, 0, len(batch.JobIDs))
	for _, jobID := range batch.JobIDs {
		job, err := s.jobs.GetJob(ctx, jobID)
		if err != nil {
			return Batch{}, nil, fmt.Errorf("get batch member %s: %w", jobID, err)
		}
		jobs = append(jobs, job)
	}
	return batch, jobs, nil
}

// QueueStatus reports queue depth, in-flight work, and 24h terminal counts.
func (s *Service) QueueStatus(ctx context.Context) (QueueStatus, error) {
	pending, err := s.jobs.CountByStatus(ctx, JobStatusPending)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("count pending: %w", err)
	}
	processing, err := s.jobs.CountByStatus(ctx, JobStatusProcessing)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("count processing: %w", err)
	}
	since := s.clock.Now().Add(-24 * time.Hour)
	completed, err := s.jobs.CountFinishedSince(ctx, JobStatusCompleted, since)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("count completed: %w", err)
	}
	failed, err := s.jobs.CountFinishedSince(ctx, JobStatusFailed, since)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("count failed: %w", err)
	}
	return QueueStatus{
		QueueDepth:   pending,
		Processing:   processing,
		Completed24h: completed,
		Failed24h:    failed,
	}, nil
}

func (s *Service) emit(n Notification) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(n)
}

func notificationKind(status JobStatus) NotificationKind {
	if status == JobStatusCompleted {
		return NotifyJobCompleted
	}
	return NotifyJobFailed
}

func normalizeDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", validationf("domain is required")
	}
	return domain, nil
}
