// backend/scraper/document_finder_test.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

func pageServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, html)
	}))
	t.Cleanup(server.Close)
	return server
}

func comparableDescriptor() models.SourceDescriptor {
	return models.SourceDescriptor{
		Type:        models.DatasetComparableIndustry,
		DocumentExt: ".pdf",
		LinkHints:   []string{"類似業種"},
	}
}

func TestFindDocumentLink(t *testing.T) {
	html := `<html><body>
		<a href="/guide.pdf">利用案内</a>
		<a href="/taxanswer/sozoku/r06/ruiji.pdf">類似業種比準価額計算上の業種目及び業種目別株価について</a>
		<a href="/other.htm">類似業種のページ</a>
	</body></html>`
	server := pageServer(t, html)

	link, err := testClient().FindDocumentLink(context.Background(), server.URL+"/taxanswer/sozoku/4608.htm",
		comparableDescriptor(), 5*time.Second)
	require.NoError(t, err)
	// Relative href resolves against the page URL; the hint-less .pdf and
	// the .htm anchor are both passed over.
	assert.Equal(t, server.URL+"/taxanswer/sozoku/r06/ruiji.pdf", link)
}

func TestFindDocumentLinkFirstMatchWins(t *testing.T) {
	html := `<html><body>
		<a href="/first.pdf">類似業種 令和6年分</a>
		<a href="/second.pdf">類似業種 令和5年分</a>
	</body></html>`
	server := pageServer(t, html)

	link, err := testClient().FindDocumentLink(context.Background(), server.URL+"/page.htm",
		comparableDescriptor(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/first.pdf", link)
}

func TestFindDocumentLinkIgnoresQueryString(t *testing.T) {
	html := `<a href="/data.pdf?dl=1">類似業種データ</a>`
	server := pageServer(t, html)

	link, err := testClient().FindDocumentLink(context.Background(), server.URL+"/page.htm",
		comparableDescriptor(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/data.pdf?dl=1", link)
}

func TestFindDocumentLinkNotFound(t *testing.T) {
	html := `<html><body>
		<a href="/unrelated.pdf">別の資料</a>
		<a href="/4608.htm">類似業種</a>
	</body></html>`
	server := pageServer(t, html)

	_, err := testClient().FindDocumentLink(context.Background(), server.URL+"/page.htm",
		comparableDescriptor(), 5*time.Second)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFindDocumentLinkPageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient().FindDocumentLink(context.Background(), server.URL+"/gone.htm",
		comparableDescriptor(), 5*time.Second)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDocumentNotFound)
}
