package scrape

import (
	"errors"
	"fmt"
)

// Sentinel conditions surfaced by stores and the service. Callers distinguish
// them with errors.Is; they are expected outcomes, not alarms.
var (
	// ErrNotFound signals an unknown job, batch, strategy domain, event, or
	// venue. Absence of knowledge is a valid state.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyLocked signals a lease attempt on a job another worker is
	// already processing. Losers of a lease race receive this, not a retry
	// storm.
	ErrAlreadyLocked = errors.New("job already locked")

	// ErrInvalidTransition signals a lifecycle move the state machine does
	// not permit, such as leasing a terminal job.
	ErrInvalidTransition = errors.New("invalid job transition")

	// ErrInvalidState signals a report against a job that is not processing.
	ErrInvalidState = errors.New("job is not processing")

	// ErrNoPendingJobs signals an empty queue on lease-next. Normal outcome.
	ErrNoPendingJobs = errors.New("no pending jobs")

	// ErrDuplicateID signals an insert with an id that already exists.
	ErrDuplicateID = errors.New("id already exists")
)

// ValidationError rejects malformed input at the boundary, before any store
// mutation. The core never sees input that failed validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
