// backend/scraper/downloader.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DownloadOptions bounds a document download.
type DownloadOptions struct {
	// MaxAttempts is the total number of tries, not extra retries.
	MaxAttempts int
	// BaseDelay is the wait after the first failure; it doubles per
	// attempt with no jitter.
	BaseDelay time.Duration
	// Timeout applies to each individual attempt.
	Timeout time.Duration
}

// DownloadDocument downloads url into localSavePath with bounded retry.
// After MaxAttempts consecutive failures it gives up with
// ErrSourceUnavailable; it never retries indefinitely.
func (c *Client) DownloadDocument(ctx context.Context, url, localSavePath string, opts DownloadOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	log.Printf("Scraper: downloading %s to %s (max %d attempts)\n", url, localSavePath, opts.MaxAttempts)

	if err := os.MkdirAll(filepath.Dir(localSavePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localSavePath, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.BaseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0 // deterministic doubling, no jitter
	policy.MaxInterval = opts.BaseDelay << uint(opts.MaxAttempts)
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		if err := c.downloadOnce(ctx, url, localSavePath, opts.Timeout); err != nil {
			log.Printf("WARN Scraper: download attempt %d of %s failed: %v\n", attempt, url, err)
			return err
		}
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(opts.MaxAttempts-1)), ctx))
	if err != nil {
		return fmt.Errorf("download of %s exhausted %d attempts: %v: %w",
			url, opts.MaxAttempts, err, ErrSourceUnavailable)
	}
	log.Printf("Scraper: successfully downloaded %s to %s\n", url, localSavePath)
	return nil
}

func (c *Client) downloadOnce(ctx context.Context, url, localSavePath string, timeout time.Duration) error {
	resp, err := c.Do(ctx, http.MethodGet, url, timeout)
	if err != nil {
		return fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: received status code %d", url, resp.StatusCode)
	}

	outFile, err := os.Create(localSavePath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		return fmt.Errorf("failed to copy downloaded content to %s: %w", localSavePath, err)
	}
	return nil
}
