package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// BatchStore provides an in-memory batch implementation.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]scrape.Batch
}

// NewBatchStore constructs a BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[string]scrape.Batch)}
}

// CreateBatch stores a new batch cohort.
func (s *BatchStore) CreateBatch(_ context.Context, batch scrape.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return scrape.ErrDuplicateID
	}
	batch.JobIDs = append([]string(nil), batch.JobIDs...)
	s.batches[batch.ID] = batch
	return nil
}

// GetBatch fetches a batch by ID. The member list is returned as a copy so
// callers cannot mutate the stored cohort.
func (s *BatchStore) GetBatch(_ context.Context, batchID string) (scrape.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return scrape.Batch{}, scrape.ErrNotFound
	}
	batch.JobIDs = append([]string(nil), batch.JobIDs...)
	return batch, nil
}
