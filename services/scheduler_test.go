// backend/services/scheduler_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

func TestSchedulerFirstTickFiresImmediately(t *testing.T) {
	updates, checks, store, stub := newUpdateFixture(t)
	stub.etag = `"v1"`

	scheduler := NewScheduler(checks.cfg, checks, updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	// The immediate tick checks every dataset before the first interval.
	require.Eventually(t, func() bool {
		history, err := store.History(context.Background(), "", 50)
		return err == nil && len(history) == len(models.AllDatasetTypes)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
