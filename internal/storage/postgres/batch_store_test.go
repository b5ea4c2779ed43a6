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

func TestBatchStoreRoundTrip(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewBatchStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	batch := scrape.Batch{
		ID:          "batch-1",
		SubmittedBy: "importer",
		CreatedAt:   now,
		JobIDs:      []string{"job-1", "job-2"},
	}

	mock.ExpectExec("INSERT INTO scrape_batches").
		WithArgs("batch-1", "importer", now, []string{"job-1", "job-2"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.CreateBatch(context.Background(), batch))

	mock.ExpectQuery("SELECT (.+) FROM scrape_batches").
		WithArgs("batch-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "submitted_by", "created_at", "job_ids"}).
			AddRow("batch-1", "importer", now, []string{"job-1", "job-2"}))
	got, err := store.GetBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Equal(t, []string{"job-1", "job-2"}, got.JobIDs)

	mock.ExpectQuery("SELECT (.+) FROM scrape_batches").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.GetBatch(context.Background(), "missing")
	require.ErrorIs(t, err, scrape.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
