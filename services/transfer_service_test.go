// backend/services/transfer_service_test.go
package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
)

func newTransferFixture(t *testing.T) (*TransferService, *database.Store) {
	t.Helper()
	cfg := testConfig(t, "http://unused.invalid")
	store, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewTransferService(store), store
}

func TestImportCSV(t *testing.T) {
	transfer, store := newTransferFixture(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "comparable.csv")
	csvData := `industry_code,industry_name,average_price,average_dividend,average_profit,average_net_assets
104,建設業,351.0,5.1,32.0,298.0
105,食料品製造業,412.5,6.3,41.2,305.8
`
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0644))

	count, err := transfer.ImportCSV(ctx, models.DatasetComparableIndustry, path, 2026, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rows, err := store.ComparableIndustryForPeriod(ctx, 2026, 6)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "建設業", rows[0].IndustryName)
	assert.Equal(t, 305.8, rows[1].AverageNetAssets)
}

func TestImportCSVMissingFile(t *testing.T) {
	transfer, _ := newTransferFixture(t)
	_, err := transfer.ImportCSV(context.Background(),
		models.DatasetComparableIndustry, "/nonexistent/file.csv", 2026, 6)
	assert.Error(t, err)
}

func TestExportPeriodRoundTrip(t *testing.T) {
	transfer, store := newTransferFixture(t)
	ctx := context.Background()

	_, err := store.ImportComparableIndustry(ctx, 2026, 6, []models.ComparableIndustryRow{
		{IndustryCode: "104", IndustryName: "建設業",
			AveragePrice: 351.0, AverageDividend: 5.1, AverageProfit: 32.0, AverageNetAssets: 298.0},
	})
	require.NoError(t, err)
	_, err = store.ImportDividendReduction(ctx, 2026, 6, []models.DividendReductionRow{
		{CapitalRangeMin: 0, CapitalRangeMax: 50000000, ReductionRate: 0.10},
	})
	require.NoError(t, err)

	outputDir := t.TempDir()
	files, err := transfer.ExportPeriod(ctx, 2026, 6, outputDir)
	require.NoError(t, err)
	// Company-size has no rows for the period, so only two files appear.
	require.Len(t, files, 2)
	assert.Contains(t, files[0], "comparable_industry_2026_06.csv")
	assert.Contains(t, files[1], "dividend_reduction_2026_06.csv")

	// An exported file imports back unchanged.
	count, err := transfer.ImportCSV(ctx, models.DatasetComparableIndustry, files[0], 2027, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rows, err := store.ComparableIndustryForPeriod(ctx, 2027, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 298.0, rows[0].AverageNetAssets)
}

func TestExportPeriodEmpty(t *testing.T) {
	transfer, _ := newTransferFixture(t)
	files, err := transfer.ExportPeriod(context.Background(), 1999, 1, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
