// backend/services/transfer_service.go
package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"

	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// TransferService moves dataset rows between CSV files and the store: manual
// imports for periods the pipeline can't fetch (historic data, hand-fixed
// documents) and per-period exports for audits.
type TransferService struct {
	store *database.Store
}

func NewTransferService(store *database.Store) *TransferService {
	return &TransferService{store: store}
}

// ImportCSV bulk-imports one dataset period from a CSV file whose headers
// match the dataset row's csv tags. Same replace-by-period semantics as the
// acquisition pipeline.
func (s *TransferService) ImportCSV(ctx context.Context, t models.DatasetType, path string, year, month int) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	defer file.Close()

	decoder, err := csvutil.NewDecoder(csv.NewReader(file))
	if err != nil {
		return 0, fmt.Errorf("failed to create CSV decoder for %s: %w", path, err)
	}

	var count int
	switch t {
	case models.DatasetComparableIndustry:
		var rows []models.ComparableIndustryRow
		if err := decoder.Decode(&rows); err != nil {
			return 0, fmt.Errorf("failed to decode comparable-industry CSV %s: %w", path, err)
		}
		count, err = s.store.ImportComparableIndustry(ctx, year, month, rows)
	case models.DatasetDividendReduction:
		var rows []models.DividendReductionRow
		if err := decoder.Decode(&rows); err != nil {
			return 0, fmt.Errorf("failed to decode dividend-reduction CSV %s: %w", path, err)
		}
		count, err = s.store.ImportDividendReduction(ctx, year, month, rows)
	case models.DatasetCompanySize:
		var rows []models.CompanySizeRow
		if err := decoder.Decode(&rows); err != nil {
			return 0, fmt.Errorf("failed to decode company-size CSV %s: %w", path, err)
		}
		count, err = s.store.ImportCompanySize(ctx, year, month, rows)
	default:
		return 0, fmt.Errorf("unknown dataset type for CSV import: %s", t)
	}
	if err != nil {
		return 0, err
	}
	log.Printf("Service: imported %d %s rows from %s for %d-%02d\n", count, t, path, year, month)
	return count, nil
}

// ExportPeriod writes one CSV per dataset for the given period into
// outputDir and returns the written paths. Datasets with no rows for the
// period are skipped.
func (s *TransferService) ExportPeriod(ctx context.Context, year, month int, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", outputDir, err)
	}

	var written []string
	write := func(name string, rows any, count int) error {
		if count == 0 {
			return nil
		}
		data, err := csvutil.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal %s rows: %w", name, err)
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s_%d_%02d.csv", name, year, month))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	comparable, err := s.store.ComparableIndustryForPeriod(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if err := write("comparable_industry", comparable, len(comparable)); err != nil {
		return nil, err
	}

	dividend, err := s.store.DividendReductionForPeriod(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if err := write("dividend_reduction", dividend, len(dividend)); err != nil {
		return nil, err
	}

	size, err := s.store.CompanySizeForPeriod(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if err := write("company_size", size, len(size)); err != nil {
		return nil, err
	}

	log.Printf("Service: exported %d dataset files for %d-%02d to %s\n", len(written), year, month, outputDir)
	return written, nil
}
