package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClientGeocode verifies query construction and response parsing.
func TestClientGeocode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "100 Main St, Springfield", r.URL.Query().Get("q"))
		require.Equal(t, "json", r.URL.Query().Get("format"))
		require.Equal(t, "1", r.URL.Query().Get("limit"))
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"42.360100","lon":"-71.058900"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-agent")
	lat, lng, found, err := client.Geocode(context.Background(), "100 Main St, Springfield")
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 42.3601, lat, 1e-6)
	require.InDelta(t, -71.0589, lng, 1e-6)
}

// TestClientGeocodeNoMatch verifies an empty result set is not an error.
func TestClientGeocodeNoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, _, found, err := client.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	require.False(t, found)
}

// TestClientGeocodeServerError surfaces non-200 responses as errors.
func TestClientGeocodeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, _, _, err := client.Geocode(context.Background(), "100 Main St")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}
