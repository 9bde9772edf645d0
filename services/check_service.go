// backend/services/check_service.go
package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
	"github.com/stockvaluatorpro/taxdata/backend/notify"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
)

// Ledger is the slice of the database store the services mutate history
// through. Only Transition ever modifies an existing record.
type Ledger interface {
	RecordCheck(ctx context.Context, rec *models.UpdateCheckRecord) error
	LatestCheck(ctx context.Context, t models.DatasetType) (*models.UpdateCheckRecord, error)
	LatestPending(ctx context.Context, t models.DatasetType) (*models.UpdateCheckRecord, error)
	History(ctx context.Context, t models.DatasetType, limit int) ([]models.UpdateCheckRecord, error)
	Transition(ctx context.Context, id int64, next models.UpdateStatus, fields database.TransitionFields) error
}

// CheckService runs the lightweight freshness check: a metadata probe per
// dataset compared against the most recent ledger record, with every
// successful probe appended to the ledger as part of the audit trail.
type CheckService struct {
	cfg        *config.Config
	client     *scraper.Client
	ledger     Ledger
	dispatcher *notify.Dispatcher
}

func NewCheckService(cfg *config.Config, client *scraper.Client, ledger Ledger, dispatcher *notify.Dispatcher) *CheckService {
	return &CheckService{cfg: cfg, client: client, ledger: ledger, dispatcher: dispatcher}
}

// Check probes one dataset's publishing page and records the outcome.
// Probe failures are transient errors reported to the caller; no record is
// fabricated for them, so a down source never reads as "no update".
func (s *CheckService) Check(ctx context.Context, t models.DatasetType) (*models.UpdateCheckRecord, error) {
	desc, err := s.cfg.DescriptorFor(t)
	if err != nil {
		return nil, err
	}
	pageURL := s.cfg.Source.BaseURL + desc.PagePath
	log.Printf("Service: checking %s for updates at %s\n", t, pageURL)

	probe, err := s.client.Probe(ctx, pageURL, s.cfg.Update.ProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("update check for %s failed: %w", t, err)
	}

	prior, err := s.ledger.LatestCheck(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior check for %s: %w", t, err)
	}

	available, reason := s.compare(probe, prior)

	rec := &models.UpdateCheckRecord{
		DatasetType:     t,
		CheckedAt:       time.Now().UTC(),
		LastModified:    probe.LastModified,
		ETag:            probe.ETag,
		ContentHash:     probe.ContentHash,
		UpdateAvailable: available,
		Status:          models.StatusChecked,
		Notes:           reason,
	}
	if err := s.ledger.RecordCheck(ctx, rec); err != nil {
		return nil, err
	}

	if available {
		log.Printf("Service: update available for %s (%s)\n", t, reason)
		s.dispatcher.AnnounceUpdate(ctx, rec)
	} else {
		log.Printf("Service: no update for %s\n", t)
	}
	return rec, nil
}

// compare applies the freshness decision, in order: cold start, validator
// movement, content-hash movement, forced recheck window.
func (s *CheckService) compare(probe *scraper.ProbeResult, prior *models.UpdateCheckRecord) (bool, string) {
	if prior == nil {
		return true, "first check"
	}
	if probe.LastModified != "" && probe.LastModified != prior.LastModified {
		return true, "Last-Modified changed"
	}
	if probe.ETag != "" && probe.ETag != prior.ETag {
		return true, "ETag changed"
	}
	if probe.ContentHash != "" && probe.ContentHash != prior.ContentHash {
		return true, "content hash changed"
	}
	window := time.Duration(s.cfg.Update.ForceRecheckDays) * 24 * time.Hour
	if time.Since(prior.CheckedAt) > window {
		return true, fmt.Sprintf("forced recheck after %d days without validator movement", s.cfg.Update.ForceRecheckDays)
	}
	return false, ""
}

// CheckAll checks the three datasets concurrently. The returned map holds
// the record for every dataset whose check succeeded; the error is the first
// failure, if any.
func (s *CheckService) CheckAll(ctx context.Context) (map[models.DatasetType]*models.UpdateCheckRecord, error) {
	var mu sync.Mutex
	results := make(map[models.DatasetType]*models.UpdateCheckRecord)

	// No shared errgroup context: one dataset's probe failure must not
	// cancel its siblings mid-check.
	var g errgroup.Group
	for _, t := range models.AllDatasetTypes {
		t := t
		g.Go(func() error {
			rec, err := s.Check(ctx, t)
			if err != nil {
				log.Printf("ERROR Service: check for %s failed: %v\n", t, err)
				return err
			}
			mu.Lock()
			results[t] = rec
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
