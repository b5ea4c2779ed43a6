package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

func TestBatchStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBatchStore()
	ctx := context.Background()
	batch := scrape.Batch{
		ID:        "batch-1",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		JobIDs:    []string{"job-1", "job-2"},
	}

	if err := store.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	if err := store.CreateBatch(ctx, batch); !errors.Is(err, scrape.ErrDuplicateID) {
		t.Fatalf("CreateBatch() duplicate error = %v, want ErrDuplicateID", err)
	}

	got, err := store.GetBatch(ctx, "batch-1")
	if err != nil || len(got.JobIDs) != 2 {
		t.Fatalf("GetBatch() = %+v, %v", got, err)
	}
	got.JobIDs[0] = "mutated"
	again, err := store.GetBatch(ctx, "batch-1")
	if err != nil || again.JobIDs[0] != "job-1" {
		t.Fatalf("expected GetBatch to return a copy, got %+v err=%v", again, err)
	}

	if _, err := store.GetBatch(ctx, "missing"); !errors.Is(err, scrape.ErrNotFound) {
		t.Fatalf("GetBatch() missing error = %v, want ErrNotFound", err)
	}
}
