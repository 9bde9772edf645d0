// backend/handlers/admin_handler_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
	"github.com/stockvaluatorpro/taxdata/backend/notify"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
	"github.com/stockvaluatorpro/taxdata/backend/services"
)

func newAdminFixture(t *testing.T) (*http.ServeMux, *database.Store) {
	t.Helper()

	// A minimal source: validators present, no document links.
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
	}))
	t.Cleanup(source.Close)

	cfg, err := config.Resolve(config.Config{
		Database: config.DatabaseConfig{
			Path:      filepath.Join(t.TempDir(), "test.db"),
			BackupDir: t.TempDir(),
		},
		Source: config.SourceConfig{BaseURL: source.URL, RequestsPerMinute: 6000},
		Update: config.UpdateConfig{
			ProbeTimeoutStr:    "5s",
			DownloadTimeoutStr: "5s",
			RetryBaseDelayStr:  "1ms",
			DownloadDir:        t.TempDir(),
		},
		Notify: config.NotifyConfig{Disabled: true},
	})
	require.NoError(t, err)

	store, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := scraper.NewClient(cfg.Source)
	backup := services.NewBackupManager(store, cfg.Database.BackupDir)
	checks := services.NewCheckService(cfg, client, store, notify.NewDispatcher(cfg.Notify))
	updates := services.NewUpdateService(cfg, client, store, store, backup)

	mux := http.NewServeMux()
	NewAdmin(checks, updates).Register(mux)
	return mux, store
}

func TestCheckEndpoint(t *testing.T) {
	mux, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/check/comparable", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec models.UpdateCheckRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, models.DatasetComparableIndustry, rec.DatasetType)
	assert.True(t, rec.UpdateAvailable)
}

func TestCheckAllEndpoint(t *testing.T) {
	mux, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/check/all", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var results map[models.DatasetType]models.UpdateCheckRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	assert.Len(t, results, len(models.AllDatasetTypes))
}

func TestCheckEndpointRejectsBadInput(t *testing.T) {
	mux, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/check/comparable", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/check/unknown", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproveEndpointRequiresApprover(t *testing.T) {
	mux, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/approve/comparable", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproveEndpointNothingPending(t *testing.T) {
	mux, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/approve/comparable?approver=admin", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestApproveEndpointFailedAcquisition(t *testing.T) {
	mux, store := newAdminFixture(t)

	// Create a pending update via the check endpoint, then approve; the
	// source has no document link, so the acquisition fails upstream.
	req := httptest.NewRequest(http.MethodPost, "/api/admin/check/comparable", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/approve/comparable?approver=admin", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	latest, err := store.LatestCheck(req.Context(), models.DatasetComparableIndustry)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, latest.Status)
}

func TestStatusEndpoint(t *testing.T) {
	mux, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/status", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var statuses []services.DatasetStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &statuses))
	assert.Len(t, statuses, len(models.AllDatasetTypes))
}

func TestHistoryEndpoint(t *testing.T) {
	mux, _ := newAdminFixture(t)

	// Two checks produce two records.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/check/dividend", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/history?type=dividend&limit=1", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var records []models.UpdateCheckRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, models.DatasetDividendReduction, records[0].DatasetType)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/history?limit=zero", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
