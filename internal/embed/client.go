// Package embed notifies the embedding service when events are created or
// their content changes, so vectors are recomputed out of band.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrape-coordinator/internal/metrics"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 60 * time.Second
)

// Config controls the embedding client.
type Config struct {
	// BaseURL is the embedding service root, e.g. http://localhost:8003.
	BaseURL string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// MaxAttempts bounds retries per dispatch.
	MaxAttempts int
	// Backoff is the fixed wait between attempts.
	Backoff time.Duration
}

// Client dispatches event ids to the embedding service with bounded retry.
type Client struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Client; zero config fields fall back to defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

type updateRequest struct {
	EventIDs []string `json:"event_ids"`
}

// NotifyUpdated posts the event ids to /embeddings/update, retrying on any
// failure until the attempt budget is spent. Context cancellation stops the
// retry loop immediately.
func (c *Client) NotifyUpdated(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	if c.baseURL == "" {
		return errors.New("embedding base url is not configured")
	}

	body, err := json.Marshal(updateRequest{EventIDs: eventIDs})
	if err != nil {
		return fmt.Errorf("marshal update request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.post(ctx, body)
		metrics.ObserveCollaboratorAttempt("embedding", lastErr == nil)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("embedding dispatch canceled: %w", ctx.Err())
		}
		c.logger.Warn("embedding dispatch attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("event_count", len(eventIDs)),
			zap.Error(lastErr))
		if attempt < c.maxAttempts {
			if err := c.sleep(ctx, c.backoff); err != nil {
				return fmt.Errorf("embedding dispatch canceled: %w", err)
			}
		}
	}
	return fmt.Errorf("embedding dispatch failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	url := c.baseURL + "/embeddings/update"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(excerpt))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
