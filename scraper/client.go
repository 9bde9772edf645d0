// backend/scraper/client.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockvaluatorpro/taxdata/backend/config"
)

// ErrDocumentNotFound means the publishing page no longer carries a document
// link matching the configured extension and text hints.
var ErrDocumentNotFound = errors.New("embedded document link not found on publishing page")

// ErrSourceUnavailable means the source could not be reached even after the
// configured retries.
var ErrSourceUnavailable = errors.New("source unavailable")

// Client issues all outbound requests to the publisher. Every request
// carries the identifying User-Agent and passes through a shared rate
// limiter so checks and acquisitions never hammer the source host.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient builds a source client from configuration. Per-request deadlines
// are set by the callers (probe vs. download), so the underlying http.Client
// carries no global timeout.
func NewClient(cfg config.SourceConfig) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Client{
		httpClient: &http.Client{},
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

// Do performs one rate-limited request with the given per-request timeout.
// The caller owns the response body.
func (c *Client) Do(ctx context.Context, method, url string, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	if err := c.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("rate limit wait for %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build %s request for %s: %w", method, url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// Tie the context's lifetime to the body so reads respect the deadline.
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
