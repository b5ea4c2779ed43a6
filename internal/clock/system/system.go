// Package system provides a real clock implementation.
package system

import "time"

// Clock implements scrape.Clock using time.Now. All coordinator timestamps
// are UTC so dedup-window math never crosses zones.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
