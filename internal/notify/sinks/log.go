package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// LogSink emits one structured log line per notification. It doubles as the
// audit trail in deployments that run without a broker.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each notification using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []scrape.Notification) error {
	for _, n := range batch {
		fields := []zap.Field{
			zap.String("kind", string(n.Kind)),
			zap.Time("ts", n.TS),
		}
		if n.Job != nil {
			fields = append(fields,
				zap.String("job_id", n.Job.ID),
				zap.String("domain", n.Job.Domain),
				zap.String("status", string(n.Job.Status)),
			)
		}
		if n.Domain != "" && n.Job == nil {
			fields = append(fields, zap.String("domain", n.Domain))
		}
		if len(n.EventIDs) > 0 {
			fields = append(fields, zap.Int("event_count", len(n.EventIDs)))
		}
		if n.VenueID != "" {
			fields = append(fields, zap.String("venue_id", n.VenueID))
		}
		s.logger.Info("notification", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
