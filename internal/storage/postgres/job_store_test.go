package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

var jobColumnNames = []string{
	"id", "url", "domain", "status", "strategy_used", "priority", "submitted_by",
	"locked_by", "locked_at", "created_at", "completed_at",
	"events_found", "pages_processed", "processing_ms", "error_message",
}

func jobRow(job scrape.Job) *pgxmock.Rows {
	return pgxmock.NewRows(jobColumnNames).AddRow(
		job.ID, job.URL, job.Domain, string(job.Status), job.StrategyUsed,
		job.Priority, job.SubmittedBy, job.LockedBy, job.LockedAt,
		job.CreatedAt, job.CompletedAt,
		job.EventsFound, job.PagesProcessed, job.ProcessingMs, job.ErrorMessage,
	)
}

func TestJobStoreCreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	job := scrape.Job{
		ID:           "job-1",
		URL:          "https://tickets.example.com/events",
		Domain:       "tickets.example.com",
		Status:       scrape.JobStatusPending,
		StrategyUsed: []string{".event-card"},
		Priority:     scrape.DefaultPriority,
		SubmittedBy:  "cli",
		CreatedAt:    now,
	}

	var never *time.Time
	mock.ExpectExec("INSERT INTO scrape_jobs").
		WithArgs(
			job.ID, job.URL, job.Domain, "pending", []string{".event-card"},
			job.Priority, job.SubmittedBy, "", never,
			job.CreatedAt, never,
			0, 0, int64(0), "",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreLeaseClaimsPendingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	claimed := scrape.Job{
		ID:        "job-1",
		URL:       "https://tickets.example.com/events",
		Domain:    "tickets.example.com",
		Status:    scrape.JobStatusProcessing,
		Priority:  scrape.DefaultPriority,
		LockedBy:  "worker-a",
		LockedAt:  &now,
		CreatedAt: now.Add(-time.Minute),
	}

	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("job-1", "processing", "worker-a", now, "pending").
		WillReturnRows(jobRow(claimed))

	got, err := store.Lease(context.Background(), "job-1", "worker-a", now)
	require.NoError(t, err)
	require.Equal(t, scrape.JobStatusProcessing, got.Status)
	require.Equal(t, "worker-a", got.LockedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreLeaseClassifiesMisses(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	// Row held by another worker.
	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("job-1", "processing", "worker-a", now, "pending").
		WillReturnError(pgx.ErrNoRows)
	held := scrape.Job{ID: "job-1", Status: scrape.JobStatusProcessing, LockedBy: "worker-b", CreatedAt: now}
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow(held))
	_, err = store.Lease(ctx, "job-1", "worker-a", now)
	require.ErrorIs(t, err, scrape.ErrAlreadyLocked)

	// Row already terminal.
	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("job-2", "processing", "worker-a", now, "pending").
		WillReturnError(pgx.ErrNoRows)
	done := scrape.Job{ID: "job-2", Status: scrape.JobStatusCompleted, CreatedAt: now, CompletedAt: &now}
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("job-2").
		WillReturnRows(jobRow(done))
	_, err = store.Lease(ctx, "job-2", "worker-a", now)
	require.ErrorIs(t, err, scrape.ErrInvalidTransition)

	// Row does not exist.
	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("job-3", "processing", "worker-a", now, "pending").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("job-3").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.Lease(ctx, "job-3", "worker-a", now)
	require.ErrorIs(t, err, scrape.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreLeaseNext(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	claimed := scrape.Job{
		ID:        "job-1",
		URL:       "https://tickets.example.com/events",
		Status:    scrape.JobStatusProcessing,
		Priority:  scrape.BatchPriority,
		LockedBy:  "worker-a",
		LockedAt:  &now,
		CreatedAt: now.Add(-time.Hour),
	}

	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("processing", "worker-a", now, "pending").
		WillReturnRows(jobRow(claimed))
	got, err := store.LeaseNext(context.Background(), "worker-a", now)
	require.NoError(t, err)
	require.Equal(t, "job-1", got.ID)

	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("processing", "worker-a", now, "pending").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.LeaseNext(context.Background(), "worker-a", now)
	require.ErrorIs(t, err, scrape.ErrNoPendingJobs)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreFinish(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	done := scrape.Job{
		ID:          "job-1",
		Status:      scrape.JobStatusCompleted,
		LockedAt:    &now,
		CreatedAt:   now.Add(-time.Hour),
		CompletedAt: &now,
		EventsFound: 4,
	}
	outcome := scrape.JobOutcome{Success: true, EventsFound: 4, PagesProcessed: 2, ProcessingMs: 1800}

	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("job-1", "completed", 4, 2, int64(1800), "", now, "processing").
		WillReturnRows(jobRow(done))
	got, err := store.Finish(context.Background(), "job-1", outcome, now)
	require.NoError(t, err)
	require.Equal(t, scrape.JobStatusCompleted, got.Status)
	require.Equal(t, 4, got.EventsFound)

	// A second report hits no processing row and is rejected.
	mock.ExpectQuery("UPDATE scrape_jobs").
		WithArgs("job-1", "completed", 4, 2, int64(1800), "", now, "processing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRow(done))
	_, err = store.Finish(context.Background(), "job-1", outcome, now)
	require.ErrorIs(t, err, scrape.ErrInvalidState)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreCounts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	since := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("pending").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	depth, err := store.CountByStatus(context.Background(), scrape.JobStatusPending)
	require.NoError(t, err)
	require.Equal(t, 3, depth)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("failed", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	failed, err := store.CountFinishedSince(context.Background(), scrape.JobStatusFailed, since)
	require.NoError(t, err)
	require.Equal(t, 1, failed)

	require.NoError(t, mock.ExpectationsWereMet())
}
