// backend/services/update_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
)

var (
	// ErrNothingToApprove means no update-available check record is
	// pending for the requested dataset type.
	ErrNothingToApprove = errors.New("no pending update to approve")
	// ErrImport wraps storage failures during the bulk import step.
	ErrImport = errors.New("reference-data import failed")
)

// ReferenceStore is the storage collaborator consumed by the acquisition
// pipeline. Imports carry replace-by-period semantics and are idempotent
// under repeated calls with identical inputs.
type ReferenceStore interface {
	ImportComparableIndustry(ctx context.Context, year, month int, rows []models.ComparableIndustryRow) (int, error)
	ImportDividendReduction(ctx context.Context, year, month int, rows []models.DividendReductionRow) (int, error)
	ImportCompanySize(ctx context.Context, year, month int, rows []models.CompanySizeRow) (int, error)
	LatestPeriod(ctx context.Context, t models.DatasetType) (*database.Period, error)
}

// UpdateService owns the acquisition pipeline and the approval workflow
// gating it: locate the embedded document on the publishing page, download
// it with bounded retry, extract and parse its text, bulk-import the rows,
// then snapshot the store.
type UpdateService struct {
	cfg    *config.Config
	client *scraper.Client
	ledger Ledger
	store  ReferenceStore
	backup *BackupManager
}

func NewUpdateService(cfg *config.Config, client *scraper.Client, ledger Ledger, store ReferenceStore, backup *BackupManager) *UpdateService {
	return &UpdateService{cfg: cfg, client: client, ledger: ledger, store: store, backup: backup}
}

// Acquire runs the full pipeline for one dataset and returns the import
// counts. Failure modes: ErrDocumentNotFound (page shape changed),
// ErrSourceUnavailable (download retries exhausted), ErrParse (no valid
// rows), ErrImport (storage failure).
func (s *UpdateService) Acquire(ctx context.Context, t models.DatasetType) (*models.ImportResult, error) {
	desc, err := s.cfg.DescriptorFor(t)
	if err != nil {
		return nil, err
	}
	pageURL := s.cfg.Source.BaseURL + desc.PagePath

	docURL, err := s.client.FindDocumentLink(ctx, pageURL, desc, s.cfg.Update.DownloadTimeout)
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(s.cfg.Update.DownloadDir,
		fmt.Sprintf("%s_data_%s%s", t, time.Now().Format("20060102"), desc.DocumentExt))
	err = s.client.DownloadDocument(ctx, docURL, localPath, scraper.DownloadOptions{
		MaxAttempts: s.cfg.Update.MaxRetries,
		BaseDelay:   s.cfg.Update.RetryBaseDelay,
		Timeout:     s.cfg.Update.DownloadTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil {
			log.Printf("WARN Service: failed to remove temporary file %s: %v\n", localPath, err)
		}
	}()

	text, err := scraper.ExtractPDFText(localPath)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, scraper.ErrParse)
	}

	// The NTA publishes these tables without an explicit period marker in
	// the document itself; the import period is the acquisition month.
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	count, err := s.parseAndImport(ctx, t, text, year, month)
	if err != nil {
		return nil, err
	}

	// Backup is best-effort: a failed snapshot never rolls back the
	// import that triggered it.
	if _, err := s.backup.Snapshot(ctx); err != nil {
		log.Printf("ERROR Service: post-import backup for %s failed: %v\n", t, err)
	}

	log.Printf("Service: acquisition for %s complete, %d rows imported for %d-%02d\n", t, count, year, month)
	return &models.ImportResult{
		DatasetType:  t,
		Year:         year,
		Month:        month,
		RowsImported: count,
	}, nil
}

func (s *UpdateService) parseAndImport(ctx context.Context, t models.DatasetType, text string, year, month int) (int, error) {
	var count int
	var err error
	switch t {
	case models.DatasetComparableIndustry:
		var rows []models.ComparableIndustryRow
		if rows, err = scraper.ParseComparableIndustry(text); err == nil {
			count, err = s.importWrapped(func() (int, error) {
				return s.store.ImportComparableIndustry(ctx, year, month, rows)
			})
		}
	case models.DatasetDividendReduction:
		var rows []models.DividendReductionRow
		if rows, err = scraper.ParseDividendReduction(text); err == nil {
			count, err = s.importWrapped(func() (int, error) {
				return s.store.ImportDividendReduction(ctx, year, month, rows)
			})
		}
	case models.DatasetCompanySize:
		var rows []models.CompanySizeRow
		if rows, err = scraper.ParseCompanySize(text); err == nil {
			count, err = s.importWrapped(func() (int, error) {
				return s.store.ImportCompanySize(ctx, year, month, rows)
			})
		}
	default:
		return 0, fmt.Errorf("unknown dataset type for acquisition: %s", t)
	}
	return count, err
}

func (s *UpdateService) importWrapped(importFn func() (int, error)) (int, error) {
	count, err := importFn()
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, ErrImport)
	}
	return count, nil
}

// Approve is the admin gate in front of Acquire. It targets the most recent
// pending update-available record for the dataset, marks it approved with
// the approver's identity, runs the acquisition synchronously, and records
// the terminal outcome. Pipeline errors are surfaced, not swallowed.
func (s *UpdateService) Approve(ctx context.Context, t models.DatasetType, approver string) (*models.ImportResult, error) {
	pending, err := s.ledger.LatestPending(ctx, t)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, fmt.Errorf("dataset %s: %w", t, ErrNothingToApprove)
	}

	log.Printf("Service: update for %s approved by %s (record %d)\n", t, approver, pending.ID)
	if err := s.ledger.Transition(ctx, pending.ID, models.StatusApproved,
		database.TransitionFields{ApprovedBy: approver}); err != nil {
		return nil, err
	}

	result, err := s.Acquire(ctx, t)
	if err != nil {
		if terr := s.ledger.Transition(ctx, pending.ID, models.StatusFailed,
			database.TransitionFields{Notes: err.Error()}); terr != nil {
			log.Printf("ERROR Service: failed to record failure for record %d: %v\n", pending.ID, terr)
		}
		return nil, fmt.Errorf("acquisition for %s failed: %w", t, err)
	}

	executedAt := time.Now().UTC()
	if err := s.ledger.Transition(ctx, pending.ID, models.StatusCompleted,
		database.TransitionFields{ExecutedAt: &executedAt}); err != nil {
		return nil, err
	}
	return result, nil
}

// DatasetStatus summarizes one dataset for the status surface.
type DatasetStatus struct {
	DatasetType models.DatasetType        `json:"data_type"`
	LatestCheck *models.UpdateCheckRecord `json:"latest_check,omitempty"`
	LatestData  *database.Period          `json:"latest_data,omitempty"`
}

// Status reports, per dataset, the most recent check record and the newest
// imported data period.
func (s *UpdateService) Status(ctx context.Context) ([]DatasetStatus, error) {
	var statuses []DatasetStatus
	for _, t := range models.AllDatasetTypes {
		rec, err := s.ledger.LatestCheck(ctx, t)
		if err != nil {
			return nil, err
		}
		period, err := s.store.LatestPeriod(ctx, t)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, DatasetStatus{DatasetType: t, LatestCheck: rec, LatestData: period})
	}
	return statuses, nil
}

// History exposes the ledger's history query to the operational surfaces.
func (s *UpdateService) History(ctx context.Context, t models.DatasetType, limit int) ([]models.UpdateCheckRecord, error) {
	return s.ledger.History(ctx, t, limit)
}
