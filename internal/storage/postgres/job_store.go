package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const jobColumns = `id, url, domain, status, strategy_used, priority, submitted_by,
	locked_by, locked_at, created_at, completed_at,
	events_found, pages_processed, processing_ms, error_message`

// JobStore persists jobs in Postgres. Claims are single conditional UPDATEs,
// so racing workers are serialized by the database.
type JobStore struct {
	pool Pool
}

// NewJobStore constructs a JobStore over an existing pool.
func NewJobStore(pool Pool) *JobStore {
	return &JobStore{pool: pool}
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job scrape.Job) error {
	query := `
		INSERT INTO scrape_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := s.pool.Exec(ctx, query,
		job.ID,
		job.URL,
		job.Domain,
		string(job.Status),
		strategyUsed(job.StrategyUsed),
		job.Priority,
		job.SubmittedBy,
		job.LockedBy,
		job.LockedAt,
		job.CreatedAt,
		job.CompletedAt,
		job.EventsFound,
		job.PagesProcessed,
		job.ProcessingMs,
		job.ErrorMessage,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return scrape.ErrDuplicateID
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (scrape.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1`
	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, scrape.ErrNotFound
		}
		return scrape.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// FindJobsByURL returns every job created for the exact URL.
func (s *JobStore) FindJobsByURL(ctx context.Context, url string) ([]scrape.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE url = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("select jobs by url: %w", err)
	}
	defer rows.Close()

	var jobs []scrape.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// Lease claims the named pending job. The status predicate makes the UPDATE
// a compare-and-set; losers get no row back and are classified afterwards.
func (s *JobStore) Lease(ctx context.Context, jobID, workerID string, at time.Time) (scrape.Job, error) {
	query := `
		UPDATE scrape_jobs
		SET status = $2, locked_by = $3, locked_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + jobColumns
	job, err := scanJob(s.pool.QueryRow(ctx, query,
		jobID,
		string(scrape.JobStatusProcessing),
		workerID,
		at,
		string(scrape.JobStatusPending),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, s.classifyLeaseMiss(ctx, jobID)
		}
		return scrape.Job{}, fmt.Errorf("lease job: %w", err)
	}
	return job, nil
}

// LeaseNext claims the most urgent pending job. SKIP LOCKED keeps concurrent
// workers from queueing behind each other on the same candidate row.
func (s *JobStore) LeaseNext(ctx context.Context, workerID string, at time.Time) (scrape.Job, error) {
	query := `
		UPDATE scrape_jobs
		SET status = $1, locked_by = $2, locked_at = $3
		WHERE id = (
			SELECT id FROM scrape_jobs
			WHERE status = $4
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	job, err := scanJob(s.pool.QueryRow(ctx, query,
		string(scrape.JobStatusProcessing),
		workerID,
		at,
		string(scrape.JobStatusPending),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Job{}, scrape.ErrNoPendingJobs
		}
		return scrape.Job{}, fmt.Errorf("lease next job: %w", err)
	}
	return job, nil
}

// Finish moves a processing job to its terminal state and records the
// reported outcome. The lock holder is cleared; locked_at is kept for
// operator visibility into the last claim.
func (s *JobStore) Finish(ctx context.Context, jobID string, outcome scrape.JobOutcome, at time.Time) (scrape.Job, error) {
	status := scrape.JobStatusFailed
	if outcome.Success {
		status = scrape.JobStatusCompleted
	}
	query := `
		UPDATE scrape_jobs
		SET status = $2, events_found = $3, pages_processed = $4,
			processing_ms = $5, error_message = $6, completed_at = $7, locked_by = ''
		WHERE id = $1 AND status = $8
		RETURNING ` + jobColumns
	job, err := scanJob(s.pool.QueryRow(ctx, query,
		jobID,
		string(status),
		outcome.EventsFound,
		outcome.PagesProcessed,
		outcome.ProcessingMs,
		outcome.ErrorMessage,
		at,
		string(scrape.JobStatusProcessing),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.GetJob(ctx, jobID); errors.Is(getErr, scrape.ErrNotFound) {
				return scrape.Job{}, scrape.ErrNotFound
			}
			return scrape.Job{}, scrape.ErrInvalidState
		}
		return scrape.Job{}, fmt.Errorf("finish job: %w", err)
	}
	return job, nil
}

// CountByStatus counts jobs currently in the given status.
func (s *JobStore) CountByStatus(ctx context.Context, status scrape.JobStatus) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scrape_jobs WHERE status = $1`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs by status: %w", err)
	}
	return count, nil
}

// CountFinishedSince counts terminal jobs completed at or after since.
func (s *JobStore) CountFinishedSince(ctx context.Context, status scrape.JobStatus, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scrape_jobs WHERE status = $1 AND completed_at >= $2`,
		string(status),
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count finished jobs: %w", err)
	}
	return count, nil
}

// classifyLeaseMiss inspects the row a failed claim raced against.
func (s *JobStore) classifyLeaseMiss(ctx context.Context, jobID string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			return scrape.ErrNotFound
		}
		return fmt.Errorf("classify lease miss: %w", err)
	}
	if job.Status == scrape.JobStatusProcessing {
		return scrape.ErrAlreadyLocked
	}
	return scrape.ErrInvalidTransition
}

func scanJob(row pgx.Row) (scrape.Job, error) {
	var (
		job    scrape.Job
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.URL,
		&job.Domain,
		&status,
		&job.StrategyUsed,
		&job.Priority,
		&job.SubmittedBy,
		&job.LockedBy,
		&job.LockedAt,
		&job.CreatedAt,
		&job.CompletedAt,
		&job.EventsFound,
		&job.PagesProcessed,
		&job.ProcessingMs,
		&job.ErrorMessage,
	)
	if err != nil {
		return scrape.Job{}, err
	}
	job.Status = scrape.JobStatus(status)
	return job, nil
}

// strategyUsed keeps NULLs out of the text[] column.
func strategyUsed(selectors []string) []string {
	if selectors == nil {
		return []string{}
	}
	return selectors
}
