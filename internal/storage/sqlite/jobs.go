package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlitedrv "modernc.org/sqlite"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const jobColumns = `id, url, domain, status, strategy_used, priority, submitted_by,
	locked_by, locked_at, created_at, completed_at,
	events_found, pages_processed, processing_ms, error_message`

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job scrape.Job) error {
	query := `INSERT INTO scrape_jobs (` + jobColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.URL,
		job.Domain,
		string(job.Status),
		encodeList(job.StrategyUsed),
		job.Priority,
		job.SubmittedBy,
		job.LockedBy,
		encodeNullTime(job.LockedAt),
		encodeTime(job.CreatedAt),
		encodeNullTime(job.CompletedAt),
		job.EventsFound,
		job.PagesProcessed,
		job.ProcessingMs,
		job.ErrorMessage,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return scrape.ErrDuplicateID
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (scrape.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = ?`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.Job{}, scrape.ErrNotFound
		}
		return scrape.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// FindJobsByURL returns every job created for the exact URL.
func (s *Store) FindJobsByURL(ctx context.Context, url string) ([]scrape.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE url = ? ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, url)
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

// Lease claims the named pending job via a conditional UPDATE; the affected
// row count tells winners from losers.
func (s *Store) Lease(ctx context.Context, jobID, workerID string, at time.Time) (scrape.Job, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_jobs SET status = ?, locked_by = ?, locked_at = ? WHERE id = ? AND status = ?`,
		string(scrape.JobStatusProcessing), workerID, encodeTime(at), jobID, string(scrape.JobStatusPending),
	)
	if err != nil {
		return scrape.Job{}, fmt.Errorf("lease job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return scrape.Job{}, fmt.Errorf("lease job rows affected: %w", err)
	}
	if affected == 0 {
		return scrape.Job{}, s.classifyLeaseMiss(ctx, jobID)
	}
	return s.GetJob(ctx, jobID)
}

// LeaseNext picks the most urgent pending job and claims it with the same
// conditional UPDATE. A lost race just means another worker took the
// candidate, so the loop picks again.
func (s *Store) LeaseNext(ctx context.Context, workerID string, at time.Time) (scrape.Job, error) {
	for {
		var jobID string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM scrape_jobs WHERE status = ?
			 ORDER BY priority ASC, created_at ASC, id ASC LIMIT 1`,
			string(scrape.JobStatusPending),
		).Scan(&jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.Job{}, scrape.ErrNoPendingJobs
		}
		if err != nil {
			return scrape.Job{}, fmt.Errorf("pick next job: %w", err)
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE scrape_jobs SET status = ?, locked_by = ?, locked_at = ? WHERE id = ? AND status = ?`,
			string(scrape.JobStatusProcessing), workerID, encodeTime(at), jobID, string(scrape.JobStatusPending),
		)
		if err != nil {
			return scrape.Job{}, fmt.Errorf("claim next job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return scrape.Job{}, fmt.Errorf("claim next job rows affected: %w", err)
		}
		if affected > 0 {
			return s.GetJob(ctx, jobID)
		}
	}
}

// Finish moves a processing job to its terminal state and records the
// reported outcome.
func (s *Store) Finish(ctx context.Context, jobID string, outcome scrape.JobOutcome, at time.Time) (scrape.Job, error) {
	status := scrape.JobStatusFailed
	if outcome.Success {
		status = scrape.JobStatusCompleted
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_jobs
		 SET status = ?, events_found = ?, pages_processed = ?, processing_ms = ?,
			 error_message = ?, completed_at = ?, locked_by = ''
		 WHERE id = ? AND status = ?`,
		string(status), outcome.EventsFound, outcome.PagesProcessed, outcome.ProcessingMs,
		outcome.ErrorMessage, encodeTime(at), jobID, string(scrape.JobStatusProcessing),
	)
	if err != nil {
		return scrape.Job{}, fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return scrape.Job{}, fmt.Errorf("finish job rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetJob(ctx, jobID); errors.Is(getErr, scrape.ErrNotFound) {
			return scrape.Job{}, scrape.ErrNotFound
		}
		return scrape.Job{}, scrape.ErrInvalidState
	}
	return s.GetJob(ctx, jobID)
}

// CountByStatus counts jobs currently in the given status.
func (s *Store) CountByStatus(ctx context.Context, status scrape.JobStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scrape_jobs WHERE status = ?`, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs by status: %w", err)
	}
	return count, nil
}

// CountFinishedSince counts terminal jobs completed at or after since. The
// fixed-width timestamp encoding makes the text comparison chronological.
func (s *Store) CountFinishedSince(ctx context.Context, status scrape.JobStatus, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scrape_jobs WHERE status = ? AND completed_at >= ?`,
		string(status), encodeTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count finished jobs: %w", err)
	}
	return count, nil
}

func (s *Store) classifyLeaseMiss(ctx context.Context, jobID string) error {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (scrape.Job, error) {
	var (
		job         scrape.Job
		status      string
		strategies  string
		lockedAt    sql.NullString
		createdAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&job.URL,
		&job.Domain,
		&status,
		&strategies,
		&job.Priority,
		&job.SubmittedBy,
		&job.LockedBy,
		&lockedAt,
		&createdAt,
		&completedAt,
		&job.EventsFound,
		&job.PagesProcessed,
		&job.ProcessingMs,
		&job.ErrorMessage,
	)
	if err != nil {
		return scrape.Job{}, err
	}
	job.Status = scrape.JobStatus(status)
	job.StrategyUsed = decodeList(strategies)
	if job.CreatedAt, err = decodeTime(createdAt); err != nil {
		return scrape.Job{}, err
	}
	if job.LockedAt, err = decodeNullTime(lockedAt); err != nil {
		return scrape.Job{}, err
	}
	if job.CompletedAt, err = decodeNullTime(completedAt); err != nil {
		return scrape.Job{}, err
	}
	return job, nil
}

// isConstraintViolation matches SQLITE_CONSTRAINT (19) and its extended
// codes, which carry the base code in the low byte.
func isConstraintViolation(err error) bool {
	var serr *sqlitedrv.Error
	return errors.As(err, &serr) && serr.Code()&0xff == 19
}
