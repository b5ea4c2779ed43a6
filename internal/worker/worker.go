// Package worker implements the embedded scrape loop: lease, extract, report.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

const defaultPollInterval = 5 * time.Second

// Config controls Worker behavior.
type Config struct {
	// ID identifies this worker in leases, e.g. "embedded-0".
	ID string
	// PollInterval is the sleep after finding the queue empty.
	PollInterval time.Duration
}

// Coordinator is the slice of the scrape service the worker drives.
// *scrape.Service satisfies it.
type Coordinator interface {
	LeaseNext(ctx context.Context, workerID string) (scrape.Job, error)
	Report(ctx context.Context, jobID string, report scrape.Report) (scrape.ReportResult, error)
	ReportStrategy(ctx context.Context, domain string, patch scrape.StrategyPatch) (scrape.Strategy, error)
}

// Extractor runs the actual extraction. The collector client satisfies it.
type Extractor interface {
	Extract(ctx context.Context, job scrape.Job) (scrape.Report, error)
}

// Worker drains the pending queue one job at a time.
type Worker struct {
	coordinator Coordinator
	extractor   Extractor
	cfg         Config
	logger      *zap.Logger
}

// New constructs a Worker.
func New(coordinator Coordinator, extractor Extractor, cfg Config, logger *zap.Logger) *Worker {
	if cfg.ID == "" {
		cfg.ID = "embedded-0"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		coordinator: coordinator,
		extractor:   extractor,
		cfg:         cfg,
		logger:      logger.With(zap.String("worker_id", cfg.ID)),
	}
}

// Run blocks, leasing and processing jobs until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.coordinator.LeaseNext(ctx, w.cfg.ID)
		switch {
		case errors.Is(err, scrape.ErrNoPendingJobs):
			w.idle(ctx)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("lease next failed", zap.Error(err))
			w.idle(ctx)
			continue
		}
		w.logger.Debug("job leased", zap.String("job_id", job.ID), zap.String("url", job.URL))
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job scrape.Job) {
	report, err := w.extractor.Extract(ctx, job)
	if err != nil {
		w.logger.Warn("extraction failed",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
			zap.Error(err))
		report = scrape.Report{Success: false, ErrorMessage: err.Error()}
	}

	if _, err := w.coordinator.Report(ctx, job.ID, report); err != nil {
		w.logger.Error("report failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	// Feedback is separate from the report so external workers can skip it;
	// the embedded loop always closes it.
	success := report.Success
	if _, err := w.coordinator.ReportStrategy(ctx, job.Domain, scrape.StrategyPatch{Success: &success}); err != nil {
		w.logger.Warn("strategy feedback failed",
			zap.String("job_id", job.ID),
			zap.String("domain", job.Domain),
			zap.Error(err))
	}

	w.logger.Info("job processed",
		zap.String("job_id", job.ID),
		zap.Bool("success", report.Success),
		zap.Int("events_found", report.EventsFound))
}

func (w *Worker) idle(ctx context.Context) {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
