package models

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// ImportPermit represents one customs import permit (輸入許可書) extracted
// from a PDF via the document-understanding oracle.
type ImportPermit struct {
	PermitNumber        string
	IssueDate           time.Time
	ImporterName        string
	TrackingNumber      string
	TotalAmount         decimal.Decimal
	CustomsDuty         decimal.Decimal
	ConsumptionTax      decimal.Decimal
	LocalConsumptionTax decimal.Decimal
	Subtotal            decimal.Decimal
	Items               []LineItem
	SourceFile          string
}

// NewImportPermit validates p and returns an immutable copy. Every
// monetary field is checked independently for a negative value.
func NewImportPermit(p ImportPermit) (*ImportPermit, error) {
	if _, err := os.Stat(p.SourceFile); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, p.SourceFile)
	}

	for _, check := range []struct {
		field string
		value decimal.Decimal
	}{
		{"total_amount", p.TotalAmount},
		{"customs_duty", p.CustomsDuty},
		{"consumption_tax", p.ConsumptionTax},
		{"local_consumption_tax", p.LocalConsumptionTax},
		{"subtotal", p.Subtotal},
	} {
		if check.value.IsNegative() {
			return nil, NewValidationError(check.field, check.value.String(), "must not be negative")
		}
	}

	out := p
	out.Items = append([]LineItem(nil), p.Items...)
	return &out, nil
}
