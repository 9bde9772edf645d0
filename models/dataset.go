// backend/models/dataset.go
package models

import "fmt"

// DatasetType identifies one of the three NTA reference tables this system
// keeps synchronized. It selects the source page, the parsing grammar and the
// storage table for every check and acquisition.
type DatasetType string

const (
	DatasetComparableIndustry DatasetType = "comparable"
	DatasetDividendReduction  DatasetType = "dividend"
	DatasetCompanySize        DatasetType = "company_size"
)

// AllDatasetTypes is the closed set of tracked datasets, in check order.
var AllDatasetTypes = []DatasetType{
	DatasetComparableIndustry,
	DatasetDividendReduction,
	DatasetCompanySize,
}

// ParseDatasetType validates a user-supplied dataset type string.
func ParseDatasetType(s string) (DatasetType, error) {
	switch DatasetType(s) {
	case DatasetComparableIndustry, DatasetDividendReduction, DatasetCompanySize:
		return DatasetType(s), nil
	}
	return "", fmt.Errorf("unknown dataset type %q (expected comparable, dividend or company_size)", s)
}

func (t DatasetType) String() string { return string(t) }

// SourceDescriptor describes where a dataset is published and how to spot the
// embedded document link on the publishing page. The link hints are plain
// substrings matched against anchor text; the NTA redesigns these pages from
// time to time, so hints live in configuration rather than code.
type SourceDescriptor struct {
	Type        DatasetType `yaml:"-"`
	PagePath    string      `yaml:"page_path"`
	DocumentExt string      `yaml:"document_ext"`
	LinkHints   []string    `yaml:"link_hints"`
}
