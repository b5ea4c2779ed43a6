package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// TestClientExtract verifies the request carries the job's selector hints and
// the response is shaped into a report.
func TestClientExtract(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/extract", r.URL.Path)

		var got extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, "https://tickets.example.com/events", got.URL)
		require.Equal(t, "job-1", got.JobID)
		require.Equal(t, []string{".event-card"}, got.ExtractionHints.ContentSelectors)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"events": [
				{"external_id": "ext-1", "title": "Spring Gala", "location": "Main Hall"},
				{"external_id": "ext-2", "title": "Book Club"}
			],
			"pages_processed": 3,
			"processing_time_ms": 5400
		}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	job := scrape.Job{
		ID:           "job-1",
		URL:          "https://tickets.example.com/events",
		StrategyUsed: []string{".event-card"},
	}

	report, err := client.Extract(context.Background(), job)
	require.NoError(t, err)
	require.True(t, report.Success)
	require.Equal(t, 2, report.EventsFound)
	require.Equal(t, 3, report.PagesProcessed)
	require.EqualValues(t, 5400, report.ProcessingMs)
	require.Len(t, report.Events, 2)
	require.Equal(t, "Spring Gala", report.Events[0].Title)
}

// TestClientExtractFailurePayload shapes an unsuccessful extraction into a
// failed report rather than an error.
func TestClientExtractFailurePayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "selectors matched nothing"}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	report, err := client.Extract(context.Background(), scrape.Job{ID: "job-1", URL: "https://example.com"})
	require.NoError(t, err)
	require.False(t, report.Success)
	require.Equal(t, "selectors matched nothing", report.ErrorMessage)
	require.Zero(t, report.EventsFound)
}

// TestClientExtractServerError returns non-2xx statuses as errors.
func TestClientExtractServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collector overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Extract(context.Background(), scrape.Job{ID: "job-1", URL: "https://example.com"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

// TestClientExtractWithoutBaseURL fails fast when unconfigured.
func TestClientExtractWithoutBaseURL(t *testing.T) {
	t.Parallel()

	client := New(Config{})
	_, err := client.Extract(context.Background(), scrape.Job{ID: "job-1"})
	require.Error(t, err)
}
