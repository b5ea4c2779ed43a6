package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// ArchiveSink writes the raw report payload of every terminal job to blob
// storage at reports/{domain}/{jobID}.json. Archives are best effort: a
// failed write is logged and skipped.
type ArchiveSink struct {
	blobs  scrape.BlobStore
	logger *zap.Logger
}

// archivedReport is the stored artifact shape.
type archivedReport struct {
	Job    *scrape.Job    `json:"job"`
	Report *scrape.Report `json:"report"`
}

// NewArchiveSink constructs an ArchiveSink over the given blob store.
func NewArchiveSink(blobs scrape.BlobStore, logger *zap.Logger) *ArchiveSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSink{blobs: blobs, logger: logger}
}

// Consume archives the report carried by each terminal-job notification.
func (s *ArchiveSink) Consume(ctx context.Context, batch []scrape.Notification) error {
	if s == nil || s.blobs == nil {
		return nil
	}
	for _, n := range batch {
		if n.Kind != scrape.NotifyJobCompleted && n.Kind != scrape.NotifyJobFailed {
			continue
		}
		if n.Job == nil || n.Report == nil {
			continue
		}
		data, err := json.Marshal(archivedReport{Job: n.Job, Report: n.Report})
		if err != nil {
			s.logger.Warn("marshal report artifact failed",
				zap.String("job_id", n.Job.ID),
				zap.Error(err))
			continue
		}
		path := fmt.Sprintf("reports/%s/%s.json", n.Job.Domain, n.Job.ID)
		uri, err := s.blobs.PutObject(ctx, path, "application/json", data)
		if err != nil {
			s.logger.Warn("archive report failed",
				zap.String("job_id", n.Job.ID),
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		s.logger.Info("report archived",
			zap.String("job_id", n.Job.ID),
			zap.String("uri", uri))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *ArchiveSink) Close(context.Context) error {
	return nil
}
