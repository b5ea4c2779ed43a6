package scrape

import (
	"errors"
	"fmt"
	"time"
)

// NotificationKind denotes the milestone a Notification represents.
type NotificationKind string

// Supported notification kinds.
const (
	NotifyJobCompleted   NotificationKind = "JOB_COMPLETED"
	NotifyJobFailed      NotificationKind = "JOB_FAILED"
	NotifyEventsRecorded NotificationKind = "EVENTS_RECORDED"
	NotifyVenueCreated   NotificationKind = "VENUE_CREATED"
)

// Notification is a single coordinator milestone fanned out to sinks:
// archival, publishing, embedding recomputation, and geocoding all hang off
// these rather than off the synchronous write paths.
type Notification struct {
	// Kind denotes which milestone occurred.
	Kind NotificationKind
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Job carries the terminal job for JOB_COMPLETED / JOB_FAILED.
	Job *Job
	// Report carries the raw reported payload for archiving.
	Report *Report
	// Domain scopes event notifications to their source site.
	Domain string
	// EventIDs lists events needing embedding (re)computation.
	EventIDs []string
	// VenueID names a newly created venue awaiting geocoding.
	VenueID string
}

// Validate performs coarse validation on Notification payloads.
func (n Notification) Validate() error {
	if n.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch n.Kind {
	case NotifyJobCompleted, NotifyJobFailed:
		if n.Job == nil {
			return errors.New("job notification requires a job")
		}
	case NotifyEventsRecorded:
		if len(n.EventIDs) == 0 {
			return errors.New("events notification requires event ids")
		}
	case NotifyVenueCreated:
		if n.VenueID == "" {
			return errors.New("venue notification requires a venue id")
		}
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return nil
}
