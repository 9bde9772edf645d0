// backend/services/check_service_test.go
package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
	"github.com/stockvaluatorpro/taxdata/backend/notify"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
)

// sourceStub is a controllable stand-in for the publisher: per-path headers
// and bodies the freshness probe runs against.
type sourceStub struct {
	server       *httptest.Server
	lastModified string
	etag         string
	body         string
	failing      bool
}

func newSourceStub(t *testing.T) *sourceStub {
	t.Helper()
	stub := &sourceStub{body: "<html><body>page</body></html>"}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stub.failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if stub.lastModified != "" {
			w.Header().Set("Last-Modified", stub.lastModified)
		}
		if stub.etag != "" {
			w.Header().Set("ETag", stub.etag)
		}
		if r.Method == http.MethodGet {
			w.Write([]byte(stub.body))
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Resolve(config.Config{
		Database: config.DatabaseConfig{
			Path:      filepath.Join(t.TempDir(), "test.db"),
			BackupDir: t.TempDir(),
		},
		Source: config.SourceConfig{
			BaseURL:           baseURL,
			RequestsPerMinute: 6000,
		},
		Update: config.UpdateConfig{
			ProbeTimeoutStr:    "5s",
			DownloadTimeoutStr: "5s",
			RetryBaseDelayStr:  "1ms",
			DownloadDir:        t.TempDir(),
		},
		Notify: config.NotifyConfig{Disabled: true},
	})
	require.NoError(t, err)
	return cfg
}

func newCheckFixture(t *testing.T) (*CheckService, *database.Store, *sourceStub) {
	t.Helper()
	stub := newSourceStub(t)
	cfg := testConfig(t, stub.server.URL)

	store, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewCheckService(cfg, scraper.NewClient(cfg.Source), store, notify.NewDispatcher(cfg.Notify))
	return svc, store, stub
}

func TestCheckColdStartFlagsUpdate(t *testing.T) {
	svc, store, stub := newCheckFixture(t)
	stub.lastModified = "Mon, 02 Jun 2026 09:00:00 GMT"

	rec, err := svc.Check(context.Background(), models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.True(t, rec.UpdateAvailable, "first check with no prior record flags an update")
	assert.Equal(t, models.StatusChecked, rec.Status)
	assert.Equal(t, stub.lastModified, rec.LastModified)

	// The check itself landed in the ledger.
	latest, err := store.LatestCheck(context.Background(), models.DatasetComparableIndustry)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, rec.ID, latest.ID)
}

func TestCheckUnchangedIsIdempotent(t *testing.T) {
	svc, store, stub := newCheckFixture(t)
	stub.lastModified = "Mon, 02 Jun 2026 09:00:00 GMT"
	ctx := context.Background()

	first, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)
	require.True(t, first.UpdateAvailable)

	// Identical validators on the next two checks: no update, but every
	// check is still recorded.
	for i := 0; i < 2; i++ {
		rec, err := svc.Check(ctx, models.DatasetComparableIndustry)
		require.NoError(t, err)
		assert.False(t, rec.UpdateAvailable)
	}
	history, err := store.History(ctx, models.DatasetComparableIndustry, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestCheckDetectsValidatorChange(t *testing.T) {
	svc, _, stub := newCheckFixture(t)
	stub.lastModified = "Mon, 02 Jun 2026 09:00:00 GMT"
	ctx := context.Background()

	_, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)

	stub.lastModified = "Tue, 03 Jun 2026 09:00:00 GMT"
	rec, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.True(t, rec.UpdateAvailable)
	assert.Equal(t, "Last-Modified changed", rec.Notes)
}

func TestCheckContentHashFallback(t *testing.T) {
	// No validators at all: the hash of the page body drives the decision.
	svc, _, stub := newCheckFixture(t)
	ctx := context.Background()

	first, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.True(t, first.UpdateAvailable)
	assert.NotEmpty(t, first.ContentHash)

	second, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.False(t, second.UpdateAvailable)

	stub.body = "<html><body>revised page</body></html>"
	third, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.True(t, third.UpdateAvailable)
	assert.Equal(t, "content hash changed", third.Notes)
}

func TestCheckProbeFailureRecordsNothing(t *testing.T) {
	svc, store, stub := newCheckFixture(t)
	stub.failing = true

	_, err := svc.Check(context.Background(), models.DatasetComparableIndustry)
	require.Error(t, err)

	history, err := store.History(context.Background(), models.DatasetComparableIndustry, 10)
	require.NoError(t, err)
	assert.Empty(t, history, "a failed probe must not fabricate a check record")
}

func TestCheckForcedRecheckWindow(t *testing.T) {
	svc, store, stub := newCheckFixture(t)
	stub.lastModified = "Mon, 02 Jun 2026 09:00:00 GMT"
	ctx := context.Background()

	// Seed a prior record with identical validators but aged past the
	// forced-recheck window: unchanged headers still flag an update.
	stale := time.Now().UTC().Add(-31 * 24 * time.Hour)
	require.NoError(t, store.RecordCheck(ctx, &models.UpdateCheckRecord{
		DatasetType:  models.DatasetComparableIndustry,
		CheckedAt:    stale,
		LastModified: stub.lastModified,
		Status:       models.StatusChecked,
	}))

	rec, err := svc.Check(ctx, models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.True(t, rec.UpdateAvailable)
	assert.Contains(t, rec.Notes, "forced recheck")
}

func TestCheckAllCoversEveryDataset(t *testing.T) {
	svc, store, stub := newCheckFixture(t)
	stub.etag = `"v1"`
	ctx := context.Background()

	results, err := svc.CheckAll(ctx)
	require.NoError(t, err)
	assert.Len(t, results, len(models.AllDatasetTypes))
	for _, dt := range models.AllDatasetTypes {
		require.Contains(t, results, dt)
		assert.True(t, results[dt].UpdateAvailable)
	}

	history, err := store.History(ctx, "", 50)
	require.NoError(t, err)
	assert.Len(t, history, len(models.AllDatasetTypes))
}
