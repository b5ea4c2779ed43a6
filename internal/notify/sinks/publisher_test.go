package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pubmem "github.com/JakeFAU/scrape-coordinator/internal/publisher/memory"
	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// TestPublisherSinkAnnouncesTerminalJobs ensures only terminal-job
// notifications reach the broker.
func TestPublisherSinkAnnouncesTerminalJobs(t *testing.T) {
	t.Parallel()

	pub := pubmem.New()
	sink := NewPublisherSink(pub, "scrape-jobs", nil)
	now := time.Now().UTC()

	completed := &scrape.Job{ID: "job-1", Domain: "example.com", Status: scrape.StatusCompleted}
	failed := &scrape.Job{ID: "job-2", Domain: "example.com", Status: scrape.StatusFailed}
	report := &scrape.Report{Success: true, EventsFound: 2}

	batch := []scrape.Notification{
		{Kind: scrape.NotifyJobCompleted, TS: now, Job: completed, Report: report},
		{Kind: scrape.NotifyVenueCreated, TS: now, VenueID: "ven-1"},
		{Kind: scrape.NotifyEventsRecorded, TS: now, Domain: "example.com", EventIDs: []string{"evt-1"}},
		{Kind: scrape.NotifyJobFailed, TS: now, Job: failed, Report: &scrape.Report{Success: false}},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	messages := pub.MessagesFor("scrape-jobs")
	require.Len(t, messages, 2)

	first, ok := messages[0].Payload.(jobAnnouncement)
	require.True(t, ok)
	require.Equal(t, "JOB_COMPLETED", first.Kind)
	require.Equal(t, "job-1", first.Job.ID)
	require.Equal(t, 2, first.Report.EventsFound)

	second, ok := messages[1].Payload.(jobAnnouncement)
	require.True(t, ok)
	require.Equal(t, "JOB_FAILED", second.Kind)
	require.Equal(t, "job-2", second.Job.ID)
}

// TestPublisherSinkWithoutBroker verifies a nil publisher is a no-op.
func TestPublisherSinkWithoutBroker(t *testing.T) {
	t.Parallel()

	sink := NewPublisherSink(nil, "scrape-jobs", nil)
	batch := []scrape.Notification{
		{
			Kind: scrape.NotifyJobCompleted,
			TS:   time.Now(),
			Job:  &scrape.Job{ID: "job-1", Status: scrape.StatusCompleted},
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
}
