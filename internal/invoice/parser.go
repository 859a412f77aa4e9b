// Package invoice extracts structured invoice data from vendor billing
// PDFs. The documents are machine-generated with a fixed Japanese layout,
// so field extraction is pattern-based rather than model-based.
package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kaigen/internal/logger"
	"kaigen/internal/moneyx"
	"kaigen/pkg/models"
)

var (
	invoiceNumberPattern  = regexp.MustCompile(`請求書\[([A-Z0-9]+)\]`)
	issueDatePattern      = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	customerNamePattern   = regexp.MustCompile(`お客様名[：:]\s*(.+?)(?:\s+請求項目|\s+追跡番号|\n|$)`)
	trackingNumberPattern = regexp.MustCompile(`追跡番号[：:]\s*([A-Z0-9]+)`)
	paymentDueDatePattern = regexp.MustCompile(`お支払い期限[：:]\s*(\d{4})年(\d{1,2})月(\d{1,2})日`)
	subtotalPattern       = regexp.MustCompile(`小計[：:]\s*¥([\d,]+)`)
	taxAmountPattern      = regexp.MustCompile(`消費税額10％[：:]\s*¥([\d,]+)`)
	totalAmountPattern    = regexp.MustCompile(`合計金額[：:]\s*¥([\d,]+)`)
)

// Page is the extracted content of a single PDF page: its running text
// plus any tabular regions as rows of cells.
type Page struct {
	Text   string
	Tables [][][]string
}

// PageExtractor produces the first page of a PDF document.
type PageExtractor interface {
	FirstPage(ctx context.Context, path string) (*Page, error)
}

// Parser turns billing PDFs into validated Invoice entities.
type Parser struct {
	extractor PageExtractor
	log       zerolog.Logger
}

// NewParser creates an invoice parser reading pages through extractor.
func NewParser(extractor PageExtractor) *Parser {
	return &Parser{
		extractor: extractor,
		log:       logger.WithComponent("invoice"),
	}
}

// Parse extracts all invoice fields from the first page of the PDF at
// path and returns a validated entity. Header fields and the total are
// mandatory; subtotal and tax fall back to zero when absent.
func (p *Parser) Parse(ctx context.Context, path string) (*models.Invoice, error) {
	const op = "Parse"

	p.log.Info().Str("path", path).Msg("Parsing invoice PDF")

	page, err := p.extractor.FirstPage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: extracting first page of %s: %w", op, path, err)
	}
	if strings.TrimSpace(page.Text) == "" {
		return nil, models.NewExtractionError("text", "first page contains no extractable text")
	}

	invoiceNumber, err := matchField(invoiceNumberPattern, page.Text, "invoice_number")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	issueDate, err := matchDate(issueDatePattern, page.Text, "issue_date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	customerName, err := matchField(customerNamePattern, page.Text, "customer_name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	trackingNumber, err := matchField(trackingNumberPattern, page.Text, "tracking_number")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	paymentDueDate, err := matchDate(paymentDueDatePattern, page.Text, "payment_due_date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := extractItems(page.Tables)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	subtotal := matchAmount(subtotalPattern, page.Text)
	taxAmount := matchAmount(taxAmountPattern, page.Text)
	total := totalAmountPattern.FindStringSubmatch(page.Text)
	if total == nil {
		return nil, fmt.Errorf("%s: %w", op,
			models.NewExtractionError("total_amount", "no 合計金額 line found"))
	}
	totalAmount, err := moneyx.Parse(total[1], "total_amount", "0")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	invoice, err := models.NewInvoice(models.Invoice{
		InvoiceNumber:  invoiceNumber,
		IssueDate:      issueDate,
		CustomerName:   customerName,
		TrackingNumber: trackingNumber,
		TotalAmount:    totalAmount,
		TaxAmount:      taxAmount,
		Subtotal:       subtotal,
		PaymentDueDate: paymentDueDate,
		Items:          items,
		SourceFile:     path,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("total_amount", invoice.TotalAmount.String()).
		Int("items", len(invoice.Items)).
		Msg("Invoice parsed")

	return invoice, nil
}

func matchField(pattern *regexp.Regexp, text, field string) (string, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return "", models.NewExtractionError(field, "pattern not found in page text")
	}
	return strings.TrimSpace(m[1]), nil
}

func matchDate(pattern *regexp.Regexp, text, field string) (time.Time, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, models.NewExtractionError(field, "no date in 年月日 form found")
	}
	t, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
	if err != nil {
		return time.Time{}, models.WrapExtractionError(field, "invalid calendar date", err)
	}
	return t, nil
}

// matchAmount extracts an optional yen amount, zero when the label is
// absent or the value malformed.
func matchAmount(pattern *regexp.Regexp, text string) decimal.Decimal {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero
	}
	amount, err := moneyx.Parse(m[1], "", "0")
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// extractItems pulls line items from the first table containing a
// 請求項目 header. Rows below the header map to name, amount, quantity
// and unit cells, up to the 小計 or 合計金額 summary rows. Pages without
// an embedded table structure arrive flattened to one word-split row per
// text line, so header text can share a row with other fields and stray
// label rows can sit between the header and the items; rows whose amount
// cell is not monetary are layout artifacts and are dropped, as are rows
// with an empty name.
func extractItems(tables [][][]string) ([]models.LineItem, error) {
	for _, table := range tables {
		headerRow := -1
		for i, row := range table {
			for _, cell := range row {
				if strings.Contains(cell, "請求項目") {
					headerRow = i
					break
				}
			}
			if headerRow >= 0 {
				break
			}
		}
		if headerRow < 0 {
			continue
		}

		var items []models.LineItem
		for _, row := range table[headerRow+1:] {
			if isSummaryRow(row) {
				break
			}
			if len(row) < 3 {
				continue
			}

			name := strings.TrimSuffix(strings.TrimSpace(row[0]), "：")
			if name == "" {
				continue
			}

			amount, err := moneyx.Parse(row[1], "items.amount", "0")
			if err != nil {
				continue
			}

			quantity, err := moneyx.Parse(row[2], "items.quantity", "1")
			if err != nil {
				quantity = decimal.NewFromInt(1)
			}

			unit := "件"
			if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
				unit = strings.TrimSpace(row[3])
			}

			item, err := models.NewLineItem(name, amount, quantity, unit)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}

		if len(items) == 0 {
			return nil, models.NewExtractionError("items", "item table has no data rows")
		}
		return items, nil
	}

	return nil, models.NewExtractionError("items", "no table with a 請求項目 header found")
}

// isSummaryRow reports whether the row starts the totals block below the
// item rows.
func isSummaryRow(row []string) bool {
	for _, cell := range row {
		if strings.Contains(cell, "小計") || strings.Contains(cell, "合計金額") {
			return true
		}
	}
	return false
}
