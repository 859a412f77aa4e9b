// Package moneyx parses currency text into exact decimals.
//
// All monetary values in this repository flow through Parse before they
// reach an entity: the output feeds accounting rows, so binary floating
// point is never used and rounding never happens silently.
package moneyx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError reports a raw value that could not be converted to a decimal
// amount. Field names the originating document field for diagnostics.
type ParseError struct {
	Field string
	Raw   interface{}
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse field '%s' as a decimal amount: %v", e.Field, e.Raw)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// currency glyphs and thousands separators stripped before parsing
var cleaner = strings.NewReplacer(",", "", "¥", "", "円", "")

// Parse converts raw into an exact decimal.
//
// Numeric types are converted losslessly. Strings are trimmed and cleaned
// of currency glyphs and thousands separators; an empty or bare-dash result
// is substituted with def. Negative results are passed through unchanged:
// sign validation is the entity constructor's responsibility, not the
// parser's.
func Parse(raw interface{}, field, def string) (decimal.Decimal, error) {
	if raw == nil {
		raw = def
	}

	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, &ParseError{Field: field, Raw: raw, Err: err}
		}
		return d, nil
	case string:
		cleaned := strings.TrimSpace(cleaner.Replace(v))
		if cleaned == "" || cleaned == "-" || cleaned == "--" {
			cleaned = def
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, &ParseError{Field: field, Raw: raw, Err: err}
		}
		return d, nil
	default:
		return decimal.Decimal{}, &ParseError{Field: field, Raw: raw, Err: fmt.Errorf("unsupported type %T", raw)}
	}
}
