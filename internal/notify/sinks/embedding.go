package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// EmbeddingNotifier pushes event ids to the embedding service for vector
// (re)computation. internal/embed provides the HTTP implementation.
type EmbeddingNotifier interface {
	NotifyUpdated(ctx context.Context, eventIDs []string) error
}

// EmbeddingSink forwards the event ids carried by EVENTS_RECORDED
// notifications. Ids are de-duplicated across the batch so an event touched
// by several jobs is submitted once per flush.
type EmbeddingSink struct {
	notifier EmbeddingNotifier
	logger   *zap.Logger
}

// NewEmbeddingSink constructs an EmbeddingSink over the given notifier.
func NewEmbeddingSink(notifier EmbeddingNotifier, logger *zap.Logger) *EmbeddingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingSink{notifier: notifier, logger: logger}
}

// Consume collapses event ids across the batch and dispatches one call.
// Dispatch failures are logged and abandoned; the notifier owns retries.
func (s *EmbeddingSink) Consume(ctx context.Context, batch []scrape.Notification) error {
	if s == nil || s.notifier == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, n := range batch {
		if n.Kind != scrape.NotifyEventsRecorded {
			continue
		}
		for _, id := range n.EventIDs {
			if _, dup := seen[id]; dup || id == "" {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.notifier.NotifyUpdated(ctx, ids); err != nil {
		s.logger.Warn("embedding dispatch failed",
			zap.Int("event_count", len(ids)),
			zap.Error(err))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *EmbeddingSink) Close(context.Context) error {
	return nil
}
