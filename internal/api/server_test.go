package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
	"github.com/JakeFAU/scrape-coordinator/internal/storage/memory"
)

func TestServer_SubmitScrape(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(Config{})

	rec := doJSON(server, http.MethodPost, "/v1/scrape",
		`{"url":"https://tickets.example.com/events","submitted_by":"calendar"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.False(t, created.Reused)
	require.Equal(t, "https://tickets.example.com/events", created.Job.URL)
	require.Equal(t, scrape.JobStatusPending, created.Job.Status)
	require.Equal(t, "tickets.example.com", created.Job.Domain)

	// A resubmission of the same URL reuses the pending job.
	rec = doJSON(server, http.MethodPost, "/v1/scrape",
		`{"url":"https://tickets.example.com/events"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reused submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reused))
	require.True(t, reused.Reused)
	require.Equal(t, created.Job.ID, reused.Job.ID)
}

func TestServer_SubmitScrape_Invalid(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(Config{})

	rec := doJSON(server, http.MethodPost, "/v1/scrape", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(server, http.MethodPost, "/v1/scrape", `{"url":"ftp://example.com/feed"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "error")
}

func TestServer_BatchLifecycle(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(Config{})

	rec := doJSON(server, http.MethodPost, "/v1/scrape/batch",
		`{"urls":["https://a.example.com/events","https://b.example.com/events"],"submitted_by":"ops"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var createResp struct {
		Batch scrape.Batch `json:"batch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &createResp))
	require.Len(t, createResp.Batch.JobIDs, 2)

	rec = doJSON(server, http.MethodGet, "/v1/scrape/batch/"+createResp.Batch.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var statusResp struct {
		Batch scrape.Batch `json:"batch"`
		Jobs  []scrape.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statusResp))
	require.Len(t, statusResp.Jobs, 2)
	require.Equal(t, scrape.BatchPriority, statusResp.Jobs[0].Priority)

	rec = doJSON(server, http.MethodGet, "/v1/scrape/batch/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ClaimAndReport(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(Config{})
	job, _, err := svc.Submit(testContext(), "https://tickets.example.com/events", "api")
	require.NoError(t, err)

	claimPath := fmt.Sprintf("/v1/jobs/%s/claim", job.ID)
	rec := doJSON(server, http.MethodPost, claimPath, `{"worker_id":"worker-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var claimResp struct {
		Job scrape.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimResp))
	require.Equal(t, scrape.JobStatusProcessing, claimResp.Job.Status)
	require.Equal(t, "worker-1", claimResp.Job.LockedBy)

	// A second claim loses the race.
	rec = doJSON(server, http.MethodPost, claimPath, `{"worker_id":"worker-2"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already locked")

	reportPath := fmt.Sprintf("/v1/jobs/%s/report", job.ID)
	rec = doJSON(server, http.MethodPost, reportPath, `{
		"success": true,
		"events_found": 1,
		"pages_processed": 2,
		"processing_time_ms": 800,
		"events": [{"external_id": "ext-1", "title": "Spring Gala"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result scrape.ReportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.CreatedEventIDs, 1)

	// Terminal jobs reject further reports and claims.
	rec = doJSON(server, http.MethodPost, reportPath, `{"success": false}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(server, http.MethodPost, claimPath, `{"worker_id":"worker-3"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(server, http.MethodGet, "/v1/jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimResp))
	require.Equal(t, scrape.JobStatusCompleted, claimResp.Job.Status)

	rec = doJSON(server, http.MethodGet, "/v1/jobs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_QueueClaim(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(Config{})
	job, _, err := svc.Submit(testContext(), "https://tickets.example.com/events", "api")
	require.NoError(t, err)

	rec := doJSON(server, http.MethodPost, "/v1/queue/claim", `{"worker_id":"worker-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var claimResp struct {
		Job scrape.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimResp))
	require.Equal(t, job.ID, claimResp.Job.ID)

	// Drained queue yields 204 with no body.
	rec = doJSON(server, http.MethodPost, "/v1/queue/claim", `{"worker_id":"worker-1"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())

	rec = doJSON(server, http.MethodPost, "/v1/queue/claim", `{"worker_id":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_QueueStatus(t *testing.T) {
	t.Parallel()

	server, svc := newTestServer(Config{})
	_, _, err := svc.Submit(testContext(), "https://a.example.com/events", "api")
	require.NoError(t, err)
	_, _, err = svc.Submit(testContext(), "https://b.example.com/events", "api")
	require.NoError(t, err)

	rec := doJSON(server, http.MethodGet, "/v1/queue/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status scrape.QueueStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, 2, status.QueueDepth)
	require.Zero(t, status.Processing)
}

func TestServer_Strategies(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(Config{})

	rec := doJSON(server, http.MethodGet, "/v1/strategies/unknown.example.com", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(server, http.MethodPost, "/v1/strategies/Tickets.Example.COM",
		`{"best_selectors":[".event-card"],"success":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Strategy struct {
			scrape.Strategy
			SuccessRate float64 `json:"success_rate"`
		} `json:"strategy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "tickets.example.com", resp.Strategy.Domain)
	require.Equal(t, 1, resp.Strategy.TotalAttempts)
	require.Equal(t, 1, resp.Strategy.SuccessfulAttempts)
	require.Equal(t, 1.0, resp.Strategy.SuccessRate)

	// PUT applies fields but never counters, even if success is smuggled in.
	rec = doJSON(server, http.MethodPut, "/v1/strategies/tickets.example.com",
		`{"notes":"calendar widget needs scrolling","success":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "calendar widget needs scrolling", resp.Strategy.Notes)
	require.Equal(t, 1, resp.Strategy.TotalAttempts)

	rec = doJSON(server, http.MethodGet, "/v1/strategies/tickets.example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/v1/queue/status", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/queue/status", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open for the load balancer.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(Config{})

	rec := doJSON(server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")

	rec = doJSON(server, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")

	rec = doJSON(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func newTestServer(cfg Config) (*Server, *scrape.Service) {
	svc := scrape.NewService(
		memory.NewJobStore(),
		memory.NewStrategyStore(),
		memory.NewBatchStore(),
		memory.NewEventStore(),
		memory.NewVenueStore(),
		nil,
		utcClock{},
		&seqIDs{},
		scrape.Options{},
		nil,
	)
	return NewServer(svc, cfg, nil), svc
}

func doJSON(server *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func testContext() context.Context {
	return context.Background()
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n), nil
}
