// Package scrape defines the core types, ports, and coordination service for
// the scraping job queue: URL deduplication, atomic worker leasing, result
// recording, and the per-domain strategy feedback loop used to bias future
// extraction attempts.
package scrape
