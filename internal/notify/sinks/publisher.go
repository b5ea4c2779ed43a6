package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// PublisherSink announces terminal jobs on a broker topic so downstream
// consumers (dashboards, pipelines) see completions without polling the API.
type PublisherSink struct {
	publisher scrape.Publisher
	topic     string
	logger    *zap.Logger
}

// jobAnnouncement is the published payload for a terminal job.
type jobAnnouncement struct {
	Kind   string         `json:"kind"`
	Job    *scrape.Job    `json:"job"`
	Report *scrape.Report `json:"report,omitempty"`
}

// NewPublisherSink constructs a PublisherSink for the given topic.
func NewPublisherSink(publisher scrape.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}
}

// Consume publishes every terminal-job notification in the batch. Publish
// failures are logged and skipped so one bad message cannot wedge the rest.
func (s *PublisherSink) Consume(ctx context.Context, batch []scrape.Notification) error {
	if s == nil || s.publisher == nil || s.topic == "" {
		return nil
	}
	for _, n := range batch {
		if n.Kind != scrape.NotifyJobCompleted && n.Kind != scrape.NotifyJobFailed {
			continue
		}
		payload := jobAnnouncement{Kind: string(n.Kind), Job: n.Job, Report: n.Report}
		msgID, err := s.publisher.Publish(ctx, s.topic, payload)
		if err != nil {
			s.logger.Warn("publish terminal job failed",
				zap.String("job_id", n.Job.ID),
				zap.String("topic", s.topic),
				zap.Error(err))
			continue
		}
		s.logger.Debug("published terminal job",
			zap.String("job_id", n.Job.ID),
			zap.String("message_id", msgID))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
