package scrape

import (
	"testing"
	"time"
)

func TestContentChanged(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC)
	later := start.Add(time.Hour)
	base := Event{
		Title:       "Jazz Night",
		Description: "Live quartet",
		Location:    "Main Hall",
		StartTime:   &start,
	}

	cases := []struct {
		name   string
		mutate func(e *Event)
		want   bool
	}{
		{name: "identical", mutate: func(*Event) {}, want: false},
		{name: "title changed", mutate: func(e *Event) { e.Title = "Jazz Evening" }, want: true},
		{name: "description changed", mutate: func(e *Event) { e.Description = "Live quintet" }, want: true},
		{name: "location changed", mutate: func(e *Event) { e.Location = "Annex" }, want: true},
		{name: "start time changed", mutate: func(e *Event) { e.StartTime = &later }, want: true},
		{name: "start time cleared", mutate: func(e *Event) { e.StartTime = nil }, want: true},
		{name: "url change is not content", mutate: func(e *Event) { e.URL = "https://x.com/e2" }, want: false},
		{name: "end time change is not content", mutate: func(e *Event) { e.EndTime = &later }, want: false},
		{name: "venue change is not content", mutate: func(e *Event) { e.VenueID = "v-2" }, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			after := base
			tc.mutate(&after)
			if got := ContentChanged(base, after); got != tc.want {
				t.Fatalf("ContentChanged = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMergeEventPreservesIdentity(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stored := Event{
		ID:         "evt-1",
		Domain:     "x.com",
		ExternalID: "ext-9",
		Title:      "Old",
		VenueID:    "venue-1",
		CreatedAt:  created,
	}
	incoming := Event{
		ID:         "evt-candidate",
		Domain:     "x.com",
		ExternalID: "ext-9",
		Title:      "New",
		UpdatedAt:  created.Add(time.Hour),
	}

	merged := MergeEvent(stored, incoming)
	if merged.ID != "evt-1" {
		t.Fatalf("merged id = %q, want stored id", merged.ID)
	}
	if !merged.CreatedAt.Equal(created) {
		t.Fatalf("merged created_at = %v, want %v", merged.CreatedAt, created)
	}
	if merged.Title != "New" {
		t.Fatalf("merged title = %q, want updated title", merged.Title)
	}
	if merged.VenueID != "venue-1" {
		t.Fatal("empty incoming venue must not clear the stored link")
	}
}

func TestStrategySuccessRate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		total, successful int
		want              float64
	}{
		{0, 0, 0.0},
		{1, 1, 1.0},
		{2, 1, 0.5},
		{4, 3, 0.75},
	}
	for _, tc := range cases {
		s := Strategy{TotalAttempts: tc.total, SuccessfulAttempts: tc.successful}
		if got := s.SuccessRate(); got != tc.want {
			t.Fatalf("SuccessRate(%d/%d) = %v, want %v", tc.successful, tc.total, got, tc.want)
		}
		if got := s.SuccessRate(); got < 0 || got > 1 {
			t.Fatalf("SuccessRate out of range: %v", got)
		}
	}
}
