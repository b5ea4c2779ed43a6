package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// BatchStore persists submission cohorts in Postgres.
type BatchStore struct {
	pool Pool
}

// NewBatchStore constructs a BatchStore over an existing pool.
func NewBatchStore(pool Pool) *BatchStore {
	return &BatchStore{pool: pool}
}

// CreateBatch inserts a batch row. The member list is stored as a text array
// in submission order.
func (s *BatchStore) CreateBatch(ctx context.Context, batch scrape.Batch) error {
	query := `
		INSERT INTO scrape_batches (id, submitted_by, created_at, job_ids)
		VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, query, batch.ID, batch.SubmittedBy, batch.CreatedAt, batch.JobIDs)
	if err != nil {
		if isUniqueViolation(err) {
			return scrape.ErrDuplicateID
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetBatch fetches a batch by ID.
func (s *BatchStore) GetBatch(ctx context.Context, batchID string) (scrape.Batch, error) {
	query := `SELECT id, submitted_by, created_at, job_ids FROM scrape_batches WHERE id = $1`
	var batch scrape.Batch
	err := s.pool.QueryRow(ctx, query, batchID).Scan(
		&batch.ID,
		&batch.SubmittedBy,
		&batch.CreatedAt,
		&batch.JobIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Batch{}, scrape.ErrNotFound
		}
		return scrape.Batch{}, fmt.Errorf("select batch: %w", err)
	}
	return batch, nil
}
