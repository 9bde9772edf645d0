// backend/notify/notify_test.go
package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/models"
)

func testRecord() *models.UpdateCheckRecord {
	return &models.UpdateCheckRecord{
		ID:              1,
		DatasetType:     models.DatasetComparableIndustry,
		CheckedAt:       time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		UpdateAvailable: true,
		Status:          models.StatusChecked,
		Notes:           "Last-Modified changed",
	}
}

func TestAnnounceUpdatePostsToSlack(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer server.Close()

	d := NewDispatcher(config.NotifyConfig{
		SlackWebhookURL: server.URL,
		AdminPanelURL:   "https://admin.example.com/updates",
	})
	d.AnnounceUpdate(context.Background(), testRecord())

	require.NotNil(t, payload)
	assert.Contains(t, payload["text"], "comparable")
	assert.Contains(t, payload["text"], "Last-Modified changed")
	assert.Contains(t, payload["text"], "https://admin.example.com/updates")
	assert.Equal(t, "Stock Valuator Pro", payload["username"])
}

func TestAnnounceUpdateDisabled(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	d := NewDispatcher(config.NotifyConfig{Disabled: true, SlackWebhookURL: server.URL})
	d.AnnounceUpdate(context.Background(), testRecord())
	assert.False(t, called)
}

func TestAnnounceUpdateSinkFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDispatcher(config.NotifyConfig{SlackWebhookURL: server.URL})
	// Must not panic or block; failures are logged only.
	d.AnnounceUpdate(context.Background(), testRecord())
}

func TestSlackSinkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sink := NewSlackSink(server.URL)
	err := sink.Send(context.Background(), "hello")
	assert.Error(t, err)
}
