// backend/database/dataset_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// Period is a published data period (the NTA tables are monthly).
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// ImportComparableIndustry replaces the comparable-industry rows for the
// given period with the supplied rows in one transaction ("replace by
// period": any existing rows for year/month are superseded). Returns the
// number of rows written.
func (s *Store) ImportComparableIndustry(ctx context.Context, year, month int, rows []models.ComparableIndustryRow) (int, error) {
	return s.importRows(ctx, "comparable_industry_data", year, month, len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO comparable_industry_data
				(year, month, industry_code, industry_name, average_price,
				 average_dividend, average_profit, average_net_assets)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare comparable-industry insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, year, month, r.IndustryCode, r.IndustryName,
				r.AveragePrice, r.AverageDividend, r.AverageProfit, r.AverageNetAssets); err != nil {
				return fmt.Errorf("failed to insert comparable-industry row for code %s: %w", r.IndustryCode, err)
			}
		}
		return nil
	})
}

// ImportDividendReduction replaces the dividend-reduction rows for the given
// period.
func (s *Store) ImportDividendReduction(ctx context.Context, year, month int, rows []models.DividendReductionRow) (int, error) {
	return s.importRows(ctx, "dividend_reduction_rates", year, month, len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO dividend_reduction_rates
				(year, month, capital_range_min, capital_range_max, reduction_rate)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare dividend-reduction insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, year, month,
				r.CapitalRangeMin, r.CapitalRangeMax, r.ReductionRate); err != nil {
				return fmt.Errorf("failed to insert dividend-reduction row [%d,%d]: %w",
					r.CapitalRangeMin, r.CapitalRangeMax, err)
			}
		}
		return nil
	})
}

// ImportCompanySize replaces the company-size criteria rows for the given
// period.
func (s *Store) ImportCompanySize(ctx context.Context, year, month int, rows []models.CompanySizeRow) (int, error) {
	return s.importRows(ctx, "company_size_criteria", year, month, len(rows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO company_size_criteria
				(year, month, industry_type, size_category, employee_min, employee_max,
				 asset_min, asset_max, sales_min, sales_max)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare company-size insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, year, month, r.IndustryType, r.SizeCategory,
				r.EmployeeMin, r.EmployeeMax, r.AssetMin, r.AssetMax, r.SalesMin, r.SalesMax); err != nil {
				return fmt.Errorf("failed to insert company-size row %s/%s: %w",
					r.IndustryType, r.SizeCategory, err)
			}
		}
		return nil
	})
}

// importRows runs the shared clear-and-load transaction: delete the period's
// existing rows, insert the replacements, commit. Partial failures roll back
// so a failed import never leaves a half-written period.
func (s *Store) importRows(ctx context.Context, table string, year, month, count int, insert func(*sql.Tx) error) (int, error) {
	if count == 0 {
		return 0, fmt.Errorf("no rows provided for %s %d-%02d", table, year, month)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction for %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE year = ? AND month = ?`, table), year, month); err != nil {
		return 0, fmt.Errorf("failed to clear %s for %d-%02d: %w", table, year, month, err)
	}
	if err := insert(tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import for %s: %w", table, err)
	}
	log.Printf("Database: imported %d rows into %s for %d-%02d\n", count, table, year, month)
	return count, nil
}

// LatestPeriod returns the newest (year, month) present for a dataset type,
// or nil when the table is empty.
func (s *Store) LatestPeriod(ctx context.Context, t models.DatasetType) (*Period, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	var year, month sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT year, month FROM %s ORDER BY year DESC, month DESC LIMIT 1`, table)).
		Scan(&year, &month)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest period for %s: %w", t, err)
	}
	return &Period{Year: int(year.Int64), Month: int(month.Int64)}, nil
}

// AvailablePeriods lists the distinct (year, month) pairs present for a
// dataset type, newest first.
func (s *Store) AvailablePeriods(ctx context.Context, t models.DatasetType) ([]Period, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT year, month FROM %s ORDER BY year DESC, month DESC`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query available periods for %s: %w", t, err)
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.Year, &p.Month); err != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// ComparableIndustryForPeriod reads back one period's comparable-industry
// rows, for export.
func (s *Store) ComparableIndustryForPeriod(ctx context.Context, year, month int) ([]models.ComparableIndustryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT industry_code, industry_name, average_price, average_dividend,
		       average_profit, average_net_assets
		FROM comparable_industry_data
		WHERE year = ? AND month = ?
		ORDER BY industry_code
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparable-industry rows: %w", err)
	}
	defer rows.Close()

	var out []models.ComparableIndustryRow
	for rows.Next() {
		var r models.ComparableIndustryRow
		if err := rows.Scan(&r.IndustryCode, &r.IndustryName, &r.AveragePrice,
			&r.AverageDividend, &r.AverageProfit, &r.AverageNetAssets); err != nil {
			return nil, fmt.Errorf("failed to scan comparable-industry row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DividendReductionForPeriod reads back one period's dividend-reduction rows.
func (s *Store) DividendReductionForPeriod(ctx context.Context, year, month int) ([]models.DividendReductionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT capital_range_min, capital_range_max, reduction_rate
		FROM dividend_reduction_rates
		WHERE year = ? AND month = ?
		ORDER BY capital_range_min
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend-reduction rows: %w", err)
	}
	defer rows.Close()

	var out []models.DividendReductionRow
	for rows.Next() {
		var r models.DividendReductionRow
		if err := rows.Scan(&r.CapitalRangeMin, &r.CapitalRangeMax, &r.ReductionRate); err != nil {
			return nil, fmt.Errorf("failed to scan dividend-reduction row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompanySizeForPeriod reads back one period's company-size criteria rows.
func (s *Store) CompanySizeForPeriod(ctx context.Context, year, month int) ([]models.CompanySizeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT industry_type, size_category, employee_min, employee_max,
		       asset_min, asset_max, sales_min, sales_max
		FROM company_size_criteria
		WHERE year = ? AND month = ?
		ORDER BY industry_type, size_category
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query company-size rows: %w", err)
	}
	defer rows.Close()

	var out []models.CompanySizeRow
	for rows.Next() {
		var r models.CompanySizeRow
		if err := rows.Scan(&r.IndustryType, &r.SizeCategory, &r.EmployeeMin, &r.EmployeeMax,
			&r.AssetMin, &r.AssetMax, &r.SalesMin, &r.SalesMax); err != nil {
			return nil, fmt.Errorf("failed to scan company-size row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func tableFor(t models.DatasetType) (string, error) {
	switch t {
	case models.DatasetComparableIndustry:
		return "comparable_industry_data", nil
	case models.DatasetDividendReduction:
		return "dividend_reduction_rates", nil
	case models.DatasetCompanySize:
		return "company_size_criteria", nil
	}
	return "", fmt.Errorf("unknown dataset type %q", t)
}
