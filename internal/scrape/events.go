package scrape

import "time"

// ContentChanged reports whether any content-bearing field differs between
// two versions of an event. Embedding recomputation keys off exactly these
// fields: title, description, location, and start time. Edits anywhere else
// must not trigger it.
func ContentChanged(before, after Event) bool {
	if before.Title != after.Title {
		return true
	}
	if before.Description != after.Description {
		return true
	}
	if before.Location != after.Location {
		return true
	}
	return !timesEqual(before.StartTime, after.StartTime)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// MergeEvent overlays the reported fields of incoming onto the stored event,
// preserving the stored identity and creation time. Stores use it so every
// backend updates the same field set.
func MergeEvent(stored, incoming Event) Event {
	merged := incoming
	merged.ID = stored.ID
	merged.Domain = stored.Domain
	merged.ExternalID = stored.ExternalID
	merged.CreatedAt = stored.CreatedAt
	if merged.VenueID == "" {
		merged.VenueID = stored.VenueID
	}
	return merged
}
