package moneyx

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		def      string
		expected string
	}{
		{"yen symbol with comma", "¥3,000", "0", "3000"},
		{"yen suffix", "1500円", "0", "1500"},
		{"plain digits", "250", "0", "250"},
		{"thousands separators", "1,234,567", "0", "1234567"},
		{"surrounding whitespace", "  ¥42 ", "0", "42"},
		{"empty string uses default", "", "0", "0"},
		{"single dash uses default", "-", "0", "0"},
		{"double dash uses default", "--", "1", "1"},
		{"fractional", "12.5", "0", "12.5"},
		{"negative passes through", "-500", "0", "-500"},
		{"nil uses default", nil, "1", "1"},
		{"int", 7, "0", "7"},
		{"int64", int64(90), "0", "90"},
		{"float64", 3.25, "0", "3.25"},
		{"json number", json.Number("16650"), "0", "16650"},
		{"decimal passthrough", decimal.RequireFromString("99"), "0", "99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, "amount", tt.def)
			if err != nil {
				t.Fatalf("Parse(%v) returned error: %v", tt.raw, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Parse(%v) = %s, expected %s", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestParseRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
	}{
		{"letters", "abc"},
		{"mixed", "12a3"},
		{"unsupported type", []string{"1"}},
		{"bad json number", json.Number("not-a-number")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, "customs_duty", "0")
			if err == nil {
				t.Fatalf("Parse(%v) expected error, got none", tt.raw)
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if parseErr.Field != "customs_duty" {
				t.Errorf("ParseError.Field = %q, expected %q", parseErr.Field, "customs_duty")
			}
		})
	}
}
