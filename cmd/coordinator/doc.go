// Package main hosts the scrape coordinator entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and the v1 job
//     surface. Submissions are validated, deduplicated against recent work,
//     and persisted via the configured stores before becoming claimable.
//   - Queue semantics: claims order by priority, then submission time. A
//     claim locks the job to one worker id; a report moves it to a terminal
//     state, records extracted events and venues, and refreshes the domain
//     strategy counters that feed selector hints back to future jobs.
//   - Embedded workers: an optional fixed pool (worker.enabled) that leases
//     pending jobs, calls the collector service for extraction, reports the
//     outcome, and closes the strategy feedback loop. External workers use
//     the same HTTP surface instead.
//   - Notifications: milestone notifications are buffered by a hub and
//     batched out to sinks. Wired sinks: structured logging, terminal-job
//     announcements to Pub/Sub, raw report archiving to blob storage
//     (memory/local/GCS), embedding refresh for newly recorded events, and
//     venue geocoding through a rate-limited Nominatim worker.
//   - Configuration & plumbing: Viper populates config from env/files with
//     the SCRAPEQ_ prefix; zap provides structured logging; Prometheus
//     counters and histograms are exported via /metrics.
//
// Operational notes:
//   - Storage backends: in-memory (tests, scratch), SQLite (single host),
//     or Postgres (shared). The schema is applied on boot and idempotent.
//   - Shutdown: SIGTERM stops the HTTP server, then the worker loops, then
//     drains the notification hub so no report or announcement is lost.
//   - Geocoding calls are spaced per Nominatim policy and never retried when
//     the upstream answers with no match, only on transport errors.
//
// Run locally: go run ./cmd/coordinator -config config.yaml (or rely solely
// on SCRAPEQ_* env overrides; the memory backend needs no configuration).
package main
