// backend/models/rows.go
package models

// ComparableIndustryRow is one industry entry of the NTA comparable-industry
// valuation table (類似業種比準価額): an industry code/name plus the four
// published averages used by the valuation formula.
// CSV tags match the column headers of the exported/imported CSV files.
type ComparableIndustryRow struct {
	IndustryCode     string  `csv:"industry_code" db:"industry_code"`
	IndustryName     string  `csv:"industry_name" db:"industry_name"`
	AveragePrice     float64 `csv:"average_price" db:"average_price"`
	AverageDividend  float64 `csv:"average_dividend" db:"average_dividend"`
	AverageProfit    float64 `csv:"average_profit" db:"average_profit"`
	AverageNetAssets float64 `csv:"average_net_assets" db:"average_net_assets"`
}

// DividendReductionRow is one capital band of the dividend-reduction rate
// table (配当還元率).
type DividendReductionRow struct {
	CapitalRangeMin int64   `csv:"capital_range_min" db:"capital_range_min"`
	CapitalRangeMax int64   `csv:"capital_range_max" db:"capital_range_max"`
	ReductionRate   float64 `csv:"reduction_rate" db:"reduction_rate"`
}

// CompanySizeRow is one classification band of the company-size criteria
// table (会社規模判定基準).
type CompanySizeRow struct {
	IndustryType string `csv:"industry_type" db:"industry_type"`
	SizeCategory string `csv:"size_category" db:"size_category"`
	EmployeeMin  int64  `csv:"employee_min" db:"employee_min"`
	EmployeeMax  int64  `csv:"employee_max" db:"employee_max"`
	AssetMin     int64  `csv:"asset_min" db:"asset_min"`
	AssetMax     int64  `csv:"asset_max" db:"asset_max"`
	SalesMin     int64  `csv:"sales_min" db:"sales_min"`
	SalesMax     int64  `csv:"sales_max" db:"sales_max"`
}

// ImportResult summarizes one completed acquisition.
type ImportResult struct {
	DatasetType  DatasetType `json:"data_type"`
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	RowsImported int         `json:"rows_imported"`
}
