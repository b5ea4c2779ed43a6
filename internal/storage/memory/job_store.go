package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]scrape.Job
	byURL map[string][]string
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[string]scrape.Job),
		byURL: make(map[string][]string),
	}
}

// CreateJob stores a new pending job and indexes it by URL.
func (s *JobStore) CreateJob(_ context.Context, job scrape.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return scrape.ErrDuplicateID
	}
	s.jobs[job.ID] = job
	s.byURL[job.URL] = append(s.byURL[job.URL], job.ID)
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (scrape.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrNotFound
	}
	return job, nil
}

// FindJobsByURL returns every job created for the exact URL.
func (s *JobStore) FindJobsByURL(_ context.Context, url string) ([]scrape.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byURL[url]
	out := make([]scrape.Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.jobs[id])
	}
	return out, nil
}

// Lease performs the pending-to-processing compare-and-set under the write
// lock, so racing callers serialize and exactly one wins.
func (s *JobStore) Lease(_ context.Context, jobID, workerID string, at time.Time) (scrape.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrNotFound
	}
	return s.claimLocked(job, workerID, at)
}

// LeaseNext claims the pending job with the lowest priority value, oldest
// first on ties.
func (s *JobStore) LeaseNext(_ context.Context, workerID string, at time.Time) (scrape.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next scrape.Job
	found := false
	for _, job := range s.jobs {
		if job.Status != scrape.JobStatusPending {
			continue
		}
		if !found || leaseOrderBefore(job, next) {
			next = job
			found = true
		}
	}
	if !found {
		return scrape.Job{}, scrape.ErrNoPendingJobs
	}
	return s.claimLocked(next, workerID, at)
}

// Finish moves a processing job to its terminal state and records the
// reported outcome.
func (s *JobStore) Finish(_ context.Context, jobID string, outcome scrape.JobOutcome, at time.Time) (scrape.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrNotFound
	}
	if job.Status != scrape.JobStatusProcessing {
		return scrape.Job{}, scrape.ErrInvalidState
	}
	if outcome.Success {
		job.Status = scrape.JobStatusCompleted
	} else {
		job.Status = scrape.JobStatusFailed
	}
	job.EventsFound = outcome.EventsFound
	job.PagesProcessed = outcome.PagesProcessed
	job.ProcessingMs = outcome.ProcessingMs
	job.ErrorMessage = outcome.ErrorMessage
	job.CompletedAt = pointerTime(at)
	job.LockedBy = ""
	s.jobs[jobID] = job
	return job, nil
}

// CountByStatus counts jobs currently in the given status.
func (s *JobStore) CountByStatus(_ context.Context, status scrape.JobStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}

// CountFinishedSince counts terminal jobs completed at or after since.
func (s *JobStore) CountFinishedSince(_ context.Context, status scrape.JobStatus, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status != status || job.CompletedAt == nil {
			continue
		}
		if !job.CompletedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *JobStore) claimLocked(job scrape.Job, workerID string, at time.Time) (scrape.Job, error) {
	switch job.Status {
	case scrape.JobStatusPending:
	case scrape.JobStatusProcessing:
		return scrape.Job{}, scrape.ErrAlreadyLocked
	default:
		return scrape.Job{}, scrape.ErrInvalidTransition
	}
	job.Status = scrape.JobStatusProcessing
	job.LockedBy = workerID
	job.LockedAt = pointerTime(at)
	s.jobs[job.ID] = job
	return job, nil
}

func leaseOrderBefore(a, b scrape.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
