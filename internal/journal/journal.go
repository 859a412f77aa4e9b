// Package journal expands extracted documents into balanced double-entry
// journal rows in the MoneyForward 27-column import layout.
//
// Every document produces one contiguous block of rows sharing a single
// transaction number; within a block the debit amounts always sum to the
// credit amount. The builder itself provides no mutual exclusion across
// concurrently processed documents — callers that need strictly unique
// transaction numbers must serialize Export calls.
package journal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kaigen/internal/logger"
	"kaigen/pkg/models"
)

// Account names fixed by the MoneyForward chart of accounts in use.
const (
	creditAccount           = "普通預金"
	permitCreditSubAccount  = "埼玉県信用金庫"
	invoiceCreditSubAccount = "海源"
	dutyAccount             = "租税公課"
	prepaidTaxAccount       = "仮払消費税"
	feeAccount              = "支払手数料"

	consumptionTaxCategory      = "共-輸仕-消税 7.8%"
	localConsumptionTaxCategory = "共-輸仕-地税 2.2%"
)

// Row is one debit or credit leg of a double-entry transaction. Fields not
// listed here (department, partner, invoice flag, tag, journal type,
// closing adjustment, audit columns) are always written empty.
type Row struct {
	TransactionNo     int
	Date              time.Time
	DebitAccount      string
	DebitSubAccount   string
	DebitTaxCategory  string
	DebitAmount       decimal.Decimal
	CreditAccount     string
	CreditSubAccount  string
	CreditTaxCategory string
	CreditAmount      decimal.Decimal
	Summary           string
	Memo              string
}

// Values renders the row in the fixed 27-column sheet order. A leg's
// amount cell is written only when its account is set; tax amount cells
// are always written as 0, matching the import format.
func (r Row) Values() []interface{} {
	debitAmount := interface{}("")
	if r.DebitAccount != "" {
		debitAmount = r.DebitAmount.InexactFloat64()
	}
	creditAmount := interface{}("")
	if r.CreditAccount != "" {
		creditAmount = r.CreditAmount.InexactFloat64()
	}

	return []interface{}{
		r.TransactionNo,              // 取引No
		r.Date.Format("2006/01/02"),  // 取引日
		r.DebitAccount,               // 借方勘定科目
		r.DebitSubAccount,            // 借方補助科目
		"",                           // 借方部門
		"",                           // 借方取引先
		r.DebitTaxCategory,           // 借方税区分
		"",                           // 借方インボイス
		debitAmount,                  // 借方金額(円)
		0,                            // 借方税額
		r.CreditAccount,              // 貸方勘定科目
		r.CreditSubAccount,           // 貸方補助科目
		"",                           // 貸方部門
		"",                           // 貸方取引先
		r.CreditTaxCategory,          // 貸方税区分
		"",                           // 貸方インボイス
		creditAmount,                 // 貸方金額(円)
		0,                            // 貸方税額
		r.Summary,                    // 摘要
		r.Memo,                       // 仕訳メモ
		"",                           // タグ
		"",                           // MF仕訳タイプ
		"",                           // 決算整理仕訳
		"",                           // 作成日時
		"",                           // 作成者
		"",                           // 最終更新日時
		"",                           // 最終更新者
	}
}

// NextTransactionNo derives the next free transaction number from the
// ledger's column-A cells below the header row. Unformatted numeric cells
// arrive as float64 and are converted directly, since formatting them
// first would render values from a million upward in scientific notation.
// Cells that do not parse as integers are ignored, not treated as errors.
func NextTransactionNo(column [][]interface{}) int {
	last := 0
	for _, row := range column {
		if len(row) == 0 {
			continue
		}
		var n int
		switch v := row[0].(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			parsed, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v)))
			if err != nil {
				continue
			}
			n = parsed
		}
		if n > last {
			last = n
		}
	}
	return last + 1
}

// Source is a document that expands into one balanced block of journal
// rows. An empty block means no leg qualified and nothing should be
// written for the document.
type Source interface {
	Rows(transactionNo int) []Row
	Ref() string
}

// PermitEntry adapts an ImportPermit into journal rows: up to three debit
// legs (customs duty, consumption tax, local consumption tax), each
// emitted only when its amount is positive, balanced by a single bank
// credit leg for their sum.
type PermitEntry struct {
	Permit *models.ImportPermit
}

// Ref returns the permit number identifying the source document.
func (e PermitEntry) Ref() string { return e.Permit.PermitNumber }

// Rows implements Source.
func (e PermitEntry) Rows(transactionNo int) []Row {
	p := e.Permit
	summaryBase := fmt.Sprintf("輸入許可書 %s", p.PermitNumber)
	memoBase := fmt.Sprintf("輸入許可書番号: %s, 追跡番号: %s", p.PermitNumber, p.TrackingNumber)

	debitLegs := []struct {
		account     string
		taxCategory string
		component   string
		amount      decimal.Decimal
	}{
		{dutyAccount, "", "関税", p.CustomsDuty},
		{prepaidTaxAccount, consumptionTaxCategory, "消費税", p.ConsumptionTax},
		{prepaidTaxAccount, localConsumptionTaxCategory, "地方消費税", p.LocalConsumptionTax},
	}

	var rows []Row
	total := decimal.Zero
	for _, leg := range debitLegs {
		if !leg.amount.IsPositive() {
			continue
		}
		total = total.Add(leg.amount)
		rows = append(rows, Row{
			TransactionNo:    transactionNo,
			Date:             p.IssueDate,
			DebitAccount:     leg.account,
			DebitTaxCategory: leg.taxCategory,
			DebitAmount:      leg.amount,
			Summary:          fmt.Sprintf("%s %s", summaryBase, leg.component),
			Memo:             fmt.Sprintf("%s (%s)", memoBase, leg.component),
		})
	}

	if total.IsPositive() {
		rows = append(rows, Row{
			TransactionNo:    transactionNo,
			Date:             p.IssueDate,
			CreditAccount:    creditAccount,
			CreditSubAccount: permitCreditSubAccount,
			CreditAmount:     total,
			Summary:          summaryBase + " 支払",
			Memo:             memoBase + " (支払)",
		})
	}

	return rows
}

// InvoiceEntry adapts an Invoice into a two-row block: the full total
// booked as a payment fee debit against a bank credit. Both rows are
// emitted only when the total is positive.
type InvoiceEntry struct {
	Invoice *models.Invoice
}

// Ref returns the invoice number identifying the source document.
func (e InvoiceEntry) Ref() string { return e.Invoice.InvoiceNumber }

// Rows implements Source.
func (e InvoiceEntry) Rows(transactionNo int) []Row {
	inv := e.Invoice
	if !inv.TotalAmount.IsPositive() {
		return nil
	}

	summaryBase := fmt.Sprintf("請求書 %s", inv.InvoiceNumber)
	memoBase := fmt.Sprintf("請求書番号: %s, 追跡番号: %s", inv.InvoiceNumber, inv.TrackingNumber)

	return []Row{
		{
			TransactionNo: transactionNo,
			Date:          inv.IssueDate,
			DebitAccount:  feeAccount,
			DebitAmount:   inv.TotalAmount,
			Summary:       summaryBase,
			Memo:          memoBase,
		},
		{
			TransactionNo:    transactionNo,
			Date:             inv.IssueDate,
			CreditAccount:    creditAccount,
			CreditSubAccount: invoiceCreditSubAccount,
			CreditAmount:     inv.TotalAmount,
			Summary:          summaryBase + " 支払",
			Memo:             memoBase + " (支払)",
		},
	}
}

// Ledger is the journal sheet boundary consumed by the builder.
type Ledger interface {
	// TransactionColumn returns all existing column-A values below the
	// header row, as an ordered sequence of single-cell rows.
	TransactionColumn(ctx context.Context) ([][]interface{}, error)

	// AppendRows appends rows to the sheet preserving their order and
	// returns the number of cells updated.
	AppendRows(ctx context.Context, rows []Row) (int64, error)
}

// Builder assigns transaction numbers and appends row blocks to a ledger.
type Builder struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewBuilder creates a journal row builder writing to ledger.
func NewBuilder(ledger Ledger) *Builder {
	return &Builder{
		ledger: ledger,
		log:    logger.WithComponent("journal"),
	}
}

// Export expands src into a row block sharing one freshly derived
// transaction number and appends it to the ledger. It returns the number
// of rows written; zero with a nil error means no leg qualified and
// nothing was written, which is distinct from failure.
func (b *Builder) Export(ctx context.Context, src Source) (int, error) {
	const op = "Export"

	column, err := b.ledger.TransactionColumn(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: reading transaction numbers: %w", op, err)
	}
	transactionNo := NextTransactionNo(column)

	rows := src.Rows(transactionNo)
	if len(rows) == 0 {
		b.log.Warn().
			Str("document", src.Ref()).
			Msg("No journal rows to write for document")
		return 0, nil
	}

	cells, err := b.ledger.AppendRows(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("%s: appending rows for %s: %w", op, src.Ref(), err)
	}

	b.log.Info().
		Str("document", src.Ref()).
		Int("transaction_no", transactionNo).
		Int("rows", len(rows)).
		Int64("updated_cells", cells).
		Msg("Journal rows appended to ledger")

	return len(rows), nil
}
