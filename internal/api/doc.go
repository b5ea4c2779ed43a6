// Package api exposes the coordinator's HTTP interface: submission, lease
// and report endpoints for workers, strategy feedback, and queue health.
package api
