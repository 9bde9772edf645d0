// backend/scraper/grammar.go
package scraper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// ErrParse means a document's text yielded zero valid data rows: either the
// grammar no longer matches the published layout, or every candidate line
// was malformed.
var ErrParse = errors.New("no valid data rows parsed from document text")

// FieldKind is the value type of one schema field.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldInt
	FieldFloat
)

// Field is one positional column of a dataset's line grammar. Optional
// fields must trail the required ones; a missing optional field takes its
// default.
type Field struct {
	Name         string
	Kind         FieldKind
	Optional     bool
	DefaultInt   int64
	DefaultFloat float64
}

// LeadPattern classifies the first token of a genuine data line, used to
// discard surrounding noise (headers, footers, prose).
type LeadPattern int

const (
	// LeadNumeric data lines start with a digit (industry codes, capital
	// bands).
	LeadNumeric LeadPattern = iota
	// LeadWord data lines start with a letter or digit (industry type
	// names, including CJK).
	LeadWord
)

// LineSchema is a dataset's declarative line grammar: a lead-token pattern
// plus an ordered field list. One generic tokenizer consumes all three
// schemas, so malformed-line handling lives (and is tested) in one place.
type LineSchema struct {
	Lead   LeadPattern
	Fields []Field
}

func (s LineSchema) requiredTokens() int {
	n := 0
	for i, f := range s.Fields {
		if !f.Optional {
			n = i + 1
		}
	}
	return n
}

// ParseLines tokenizes text line-by-line against a schema. Lines whose lead
// token doesn't match the pattern, or with fewer tokens than the required
// fields, are discarded as noise. Lines with malformed numeric tokens are
// skipped; only a zero-valid-row outcome is an error (ErrParse) — partial
// success is accepted to survive source formatting drift.
func ParseLines(text string, schema LineSchema) ([][]any, error) {
	required := schema.requiredTokens()
	var rows [][]any
	malformed := 0

	for _, line := range strings.Split(text, "\n") {
		tokens := strings.Fields(line)
		if len(tokens) == 0 || !leadMatches(schema.Lead, tokens[0]) {
			continue
		}
		if len(tokens) < required {
			continue
		}

		values := make([]any, len(schema.Fields))
		ok := true
		for i, f := range schema.Fields {
			if i >= len(tokens) {
				switch f.Kind {
				case FieldInt:
					values[i] = f.DefaultInt
				case FieldFloat:
					values[i] = f.DefaultFloat
				default:
					values[i] = ""
				}
				continue
			}
			v, err := convertToken(tokens[i], f.Kind)
			if err != nil {
				malformed++
				ok = false
				break
			}
			values[i] = v
		}
		if ok {
			rows = append(rows, values)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%d candidate lines malformed, none valid: %w", malformed, ErrParse)
	}
	return rows, nil
}

func leadMatches(lead LeadPattern, token string) bool {
	r, _ := utf8.DecodeRuneInString(token)
	switch lead {
	case LeadNumeric:
		return r >= '0' && r <= '9'
	case LeadWord:
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
	}
	return false
}

func convertToken(token string, kind FieldKind) (any, error) {
	switch kind {
	case FieldText:
		return token, nil
	case FieldInt:
		// Published figures carry thousands separators.
		n, err := strconv.ParseInt(strings.ReplaceAll(token, ",", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer token %q: %w", token, err)
		}
		return n, nil
	case FieldFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("bad numeric token %q: %w", token, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown field kind %d", kind)
}

var comparableIndustrySchema = LineSchema{
	Lead: LeadNumeric,
	Fields: []Field{
		{Name: "industry_code", Kind: FieldText},
		{Name: "industry_name", Kind: FieldText},
		{Name: "average_price", Kind: FieldFloat},
		{Name: "average_dividend", Kind: FieldFloat},
		{Name: "average_profit", Kind: FieldFloat},
		{Name: "average_net_assets", Kind: FieldFloat, Optional: true},
	},
}

var dividendReductionSchema = LineSchema{
	Lead: LeadNumeric,
	Fields: []Field{
		{Name: "capital_range_min", Kind: FieldInt},
		{Name: "capital_range_max", Kind: FieldInt},
		{Name: "reduction_rate", Kind: FieldFloat},
	},
}

var companySizeSchema = LineSchema{
	Lead: LeadWord,
	Fields: []Field{
		{Name: "industry_type", Kind: FieldText},
		{Name: "size_category", Kind: FieldText},
		{Name: "employee_min", Kind: FieldInt},
		{Name: "employee_max", Kind: FieldInt},
		{Name: "asset_min", Kind: FieldInt},
		{Name: "asset_max", Kind: FieldInt},
		{Name: "sales_min", Kind: FieldInt},
		{Name: "sales_max", Kind: FieldInt, Optional: true, DefaultInt: 999999999},
	},
}

// ParseComparableIndustry parses document text into comparable-industry rows.
func ParseComparableIndustry(text string) ([]models.ComparableIndustryRow, error) {
	raw, err := ParseLines(text, comparableIndustrySchema)
	if err != nil {
		return nil, err
	}
	rows := make([]models.ComparableIndustryRow, 0, len(raw))
	for _, v := range raw {
		rows = append(rows, models.ComparableIndustryRow{
			IndustryCode:     v[0].(string),
			IndustryName:     v[1].(string),
			AveragePrice:     v[2].(float64),
			AverageDividend:  v[3].(float64),
			AverageProfit:    v[4].(float64),
			AverageNetAssets: v[5].(float64),
		})
	}
	return rows, nil
}

// ParseDividendReduction parses document text into dividend-reduction rows.
func ParseDividendReduction(text string) ([]models.DividendReductionRow, error) {
	raw, err := ParseLines(text, dividendReductionSchema)
	if err != nil {
		return nil, err
	}
	rows := make([]models.DividendReductionRow, 0, len(raw))
	for _, v := range raw {
		rows = append(rows, models.DividendReductionRow{
			CapitalRangeMin: v[0].(int64),
			CapitalRangeMax: v[1].(int64),
			ReductionRate:   v[2].(float64),
		})
	}
	return rows, nil
}

// ParseCompanySize parses document text into company-size criteria rows.
func ParseCompanySize(text string) ([]models.CompanySizeRow, error) {
	raw, err := ParseLines(text, companySizeSchema)
	if err != nil {
		return nil, err
	}
	rows := make([]models.CompanySizeRow, 0, len(raw))
	for _, v := range raw {
		rows = append(rows, models.CompanySizeRow{
			IndustryType: v[0].(string),
			SizeCategory: v[1].(string),
			EmployeeMin:  v[2].(int64),
			EmployeeMax:  v[3].(int64),
			AssetMin:     v[4].(int64),
			AssetMax:     v[5].(int64),
			SalesMin:     v[6].(int64),
			SalesMax:     v[7].(int64),
		})
	}
	return rows, nil
}
