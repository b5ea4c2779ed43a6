package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// CreateBatch inserts a batch row. The member list is stored JSON-encoded
// in submission order.
func (s *Store) CreateBatch(ctx context.Context, batch scrape.Batch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_batches (id, submitted_by, created_at, job_ids) VALUES (?,?,?,?)`,
		batch.ID, batch.SubmittedBy, encodeTime(batch.CreatedAt), encodeList(batch.JobIDs),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return scrape.ErrDuplicateID
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetBatch fetches a batch by ID.
func (s *Store) GetBatch(ctx context.Context, batchID string) (scrape.Batch, error) {
	var (
		batch     scrape.Batch
		createdAt string
		jobIDs    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, submitted_by, created_at, job_ids FROM scrape_batches WHERE id = ?`,
		batchID,
	).Scan(&batch.ID, &batch.SubmittedBy, &createdAt, &jobIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.Batch{}, scrape.ErrNotFound
		}
		return scrape.Batch{}, fmt.Errorf("select batch: %w", err)
	}
	if batch.CreatedAt, err = decodeTime(createdAt); err != nil {
		return scrape.Batch{}, err
	}
	batch.JobIDs = decodeList(jobIDs)
	return batch, nil
}
