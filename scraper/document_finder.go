// backend/scraper/document_finder.go
package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// FindDocumentLink fetches the publishing page and returns the absolute URL
// of the first anchor whose href carries the descriptor's document extension
// and whose text contains one of the descriptor's hints. Returns
// ErrDocumentNotFound when no anchor matches; that usually means the page
// was redesigned and the descriptor's hints need updating.
func (c *Client) FindDocumentLink(ctx context.Context, pageURL string, desc models.SourceDescriptor, timeout time.Duration) (string, error) {
	log.Printf("Scraper: scanning %s for %s document link (hints: %v)\n", pageURL, desc.Type, desc.LinkHints)

	resp, err := c.Do(ctx, http.MethodGet, pageURL, timeout)
	if err != nil {
		return "", fmt.Errorf("failed to get publishing page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get publishing page %s: status code %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("bad publishing page URL %s: %w", pageURL, err)
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || !hasDocumentExt(href, desc.DocumentExt) {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		for _, hint := range desc.LinkHints {
			if strings.Contains(text, hint) {
				found = href
				return false // first match wins
			}
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("no %s anchor matching hints %v on %s: %w",
			desc.DocumentExt, desc.LinkHints, pageURL, ErrDocumentNotFound)
	}

	ref, err := url.Parse(found)
	if err != nil {
		return "", fmt.Errorf("bad document href %q on %s: %w", found, pageURL, err)
	}
	resolved := base.ResolveReference(ref).String()
	log.Printf("Scraper: found %s document link: %s\n", desc.Type, resolved)
	return resolved, nil
}

// hasDocumentExt matches the href's path extension, ignoring any query
// string or fragment.
func hasDocumentExt(href, ext string) bool {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return strings.HasSuffix(strings.ToLower(href), strings.ToLower(ext))
}
