// backend/scraper/probe.go
package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ProbeResult holds the freshness validators observed on one metadata probe.
// LastModified and ETag come from a HEAD request; ContentHash is only filled
// when the source sends neither validator and the probe had to fall back to
// hashing the page body.
type ProbeResult struct {
	LastModified string
	ETag         string
	ContentHash  string
}

// Probe performs the low-cost freshness probe against url: a HEAD request
// for the validators, plus a body-hash fallback for sources that omit both.
// Network or HTTP-status failures are returned as errors, never as an empty
// result, so a broken probe can't masquerade as "unchanged".
func (c *Client) Probe(ctx context.Context, url string, timeout time.Duration) (*ProbeResult, error) {
	resp, err := c.Do(ctx, http.MethodHead, url, timeout)
	if err != nil {
		return nil, fmt.Errorf("probe of %s failed: %w", url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe of %s: unexpected status %d", url, resp.StatusCode)
	}

	result := &ProbeResult{
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
	}
	if result.LastModified != "" || result.ETag != "" {
		return result, nil
	}

	// The source sent no validators; hash the page body instead so the
	// freshness comparison still has something to bite on.
	log.Printf("Scraper: no freshness validators on %s, falling back to content hash\n", url)
	hash, err := c.hashPage(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	result.ContentHash = hash
	return result, nil
}

func (c *Client) hashPage(ctx context.Context, url string, timeout time.Duration) (string, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, timeout)
	if err != nil {
		return "", fmt.Errorf("content-hash fetch of %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("content-hash fetch of %s: unexpected status %d", url, resp.StatusCode)
	}

	h := sha256.New()
	if _, err := io.Copy(h, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read %s for content hash: %w", url, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
