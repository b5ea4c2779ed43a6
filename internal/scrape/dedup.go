package scrape

import "time"

// DefaultDedupWindow is how long a completed job keeps satisfying
// resubmissions of its URL.
const DefaultDedupWindow = 14 * 24 * time.Hour

// ReusableJob applies the dedup policy to the candidate jobs for one URL:
//
//  1. pending or processing jobs are always reusable (work is in flight);
//  2. completed jobs are reusable while now-completedAt is within the window;
//  3. failed jobs are never reusable; resubmission starts a fresh attempt;
//  4. among multiple matches, the most recently created wins.
//
// The second return is false when the caller should create a new job.
func ReusableJob(candidates []Job, now time.Time, window time.Duration) (Job, bool) {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	var best Job
	found := false
	for _, job := range candidates {
		switch job.Status {
		case JobStatusPending, JobStatusProcessing:
		case JobStatusCompleted:
			if job.CompletedAt == nil || now.Sub(*job.CompletedAt) > window {
				continue
			}
		default:
			continue
		}
		if !found || job.CreatedAt.After(best.CreatedAt) {
			best = job
			found = true
		}
	}
	return best, found
}
