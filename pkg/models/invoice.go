// Package models holds the domain entities shared by the extraction and
// journal components.
//
// Entities are validated at construction and treated as immutable
// afterwards: constructors return a defensive copy and reject invalid data
// with a ValidationError, so no partially built entity ever escapes.
package models

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice represents one vendor invoice (請求書) extracted from a PDF.
type Invoice struct {
	InvoiceNumber  string
	IssueDate      time.Time
	CustomerName   string
	TrackingNumber string
	TotalAmount    decimal.Decimal
	TaxAmount      decimal.Decimal
	Subtotal       decimal.Decimal
	PaymentDueDate time.Time
	Items          []LineItem
	SourceFile     string
}

// NewInvoice validates inv and returns an immutable copy.
//
// The referenced source file must exist, every monetary field must be
// non-negative, and the issue date must not be after the payment due date.
func NewInvoice(inv Invoice) (*Invoice, error) {
	if _, err := os.Stat(inv.SourceFile); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, inv.SourceFile)
	}

	for _, check := range []struct {
		field string
		value decimal.Decimal
	}{
		{"total_amount", inv.TotalAmount},
		{"tax_amount", inv.TaxAmount},
		{"subtotal", inv.Subtotal},
	} {
		if check.value.IsNegative() {
			return nil, NewValidationError(check.field, check.value.String(), "must not be negative")
		}
	}

	if inv.IssueDate.After(inv.PaymentDueDate) {
		return nil, NewValidationError(
			"issue_date",
			inv.IssueDate.Format("2006-01-02"),
			fmt.Sprintf("must not be after payment_due_date %s", inv.PaymentDueDate.Format("2006-01-02")),
		)
	}

	out := inv
	out.Items = append([]LineItem(nil), inv.Items...)
	return &out, nil
}
