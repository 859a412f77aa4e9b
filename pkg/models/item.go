package models

import "github.com/shopspring/decimal"

// LineItem is one charged line of an invoice or import permit.
// It is immutable; NewLineItem is the only way to obtain a valid value.
type LineItem struct {
	Name     string
	Amount   decimal.Decimal
	Quantity decimal.Decimal
	Unit     string
}

// NewLineItem validates and builds a line item. Construction fails with a
// ValidationError when the name is empty or an amount is negative; no
// partially built item is ever returned.
func NewLineItem(name string, amount, quantity decimal.Decimal, unit string) (LineItem, error) {
	if name == "" {
		return LineItem{}, NewValidationError("item_name", name, "must not be empty")
	}
	if amount.IsNegative() {
		return LineItem{}, NewValidationError("amount", amount.String(), "must not be negative")
	}
	if quantity.IsNegative() {
		return LineItem{}, NewValidationError("quantity", quantity.String(), "must not be negative")
	}
	return LineItem{Name: name, Amount: amount, Quantity: quantity, Unit: unit}, nil
}
