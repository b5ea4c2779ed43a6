// Package collector calls the extraction service that does the actual
// scraping. The coordinator hands it a URL plus selector hints and receives
// extracted events back.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/scrape-coordinator/internal/scrape"
)

// Extraction can take minutes on heavy pages; the default mirrors the
// collector's own processing ceiling.
const defaultTimeout = 180 * time.Second

// Config controls the collector client.
type Config struct {
	// BaseURL is the collector root, e.g. http://localhost:8001.
	BaseURL string
	// Timeout bounds the whole extract call.
	Timeout time.Duration
}

// Client is an HTTP client for the collector's extract endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// New constructs a Client; a zero timeout falls back to the default.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type extractRequest struct {
	URL             string          `json:"url"`
	JobID           string          `json:"job_id"`
	ExtractionHints extractionHints `json:"extraction_hints"`
}

type extractionHints struct {
	ContentSelectors []string `json:"content_selectors,omitempty"`
}

type extractResponse struct {
	Success          bool                 `json:"success"`
	Events           []scrape.EventRecord `json:"events"`
	PagesProcessed   int                  `json:"pages_processed"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
	Error            string               `json:"error"`
}

// Extract submits the job's URL for extraction and shapes the response into
// a report. Transport failures and non-2xx statuses are returned as errors;
// a well-formed unsuccessful extraction is a Report with Success false.
func (c *Client) Extract(ctx context.Context, job scrape.Job) (scrape.Report, error) {
	if c.baseURL == "" {
		return scrape.Report{}, fmt.Errorf("collector base url is not configured")
	}

	body, err := json.Marshal(extractRequest{
		URL:             job.URL,
		JobID:           job.ID,
		ExtractionHints: extractionHints{ContentSelectors: job.StrategyUsed},
	})
	if err != nil {
		return scrape.Report{}, fmt.Errorf("marshal extract request: %w", err)
	}

	url := c.baseURL + "/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return scrape.Report{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return scrape.Report{}, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return scrape.Report{}, fmt.Errorf("collector returned %d: %s", resp.StatusCode, string(excerpt))
	}

	var extracted extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extracted); err != nil {
		return scrape.Report{}, fmt.Errorf("decode extract response: %w", err)
	}

	report := scrape.Report{
		Success:        extracted.Success,
		EventsFound:    len(extracted.Events),
		PagesProcessed: extracted.PagesProcessed,
		ProcessingMs:   extracted.ProcessingTimeMs,
		Events:         extracted.Events,
	}
	if !extracted.Success {
		report.ErrorMessage = extracted.Error
		if report.ErrorMessage == "" {
			report.ErrorMessage = "extraction failed"
		}
	}
	return report, nil
}
