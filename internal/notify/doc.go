// Package notify provides the non-blocking notification hub that decouples
// the coordinator's write paths from its collaborators. Milestones are
// batched on a background goroutine and fanned out to pluggable sinks:
// structured logs, Pub/Sub, the report archive, the embedding notifier, and
// the geocoder.
package notify
