package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaigen/pkg/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func samplePermit() *models.ImportPermit {
	return &models.ImportPermit{
		PermitNumber:        "12345678910",
		IssueDate:           time.Date(2025, 10, 23, 0, 0, 0, 0, time.UTC),
		ImporterName:        "株式会社テスト",
		TrackingNumber:      "RB123456789JP",
		CustomsDuty:         d(5000),
		ConsumptionTax:      d(1500),
		LocalConsumptionTax: d(150),
		TotalAmount:         d(6650),
	}
}

func TestPermitEntryRows(t *testing.T) {
	rows := PermitEntry{Permit: samplePermit()}.Rows(42)
	require.Len(t, rows, 4)

	debitSum := decimal.Zero
	for _, row := range rows[:3] {
		assert.Equal(t, 42, row.TransactionNo)
		assert.Empty(t, row.CreditAccount)
		debitSum = debitSum.Add(row.DebitAmount)
	}

	credit := rows[3]
	assert.Equal(t, 42, credit.TransactionNo)
	assert.Equal(t, creditAccount, credit.CreditAccount)
	assert.Equal(t, permitCreditSubAccount, credit.CreditSubAccount)
	assert.True(t, debitSum.Equal(credit.CreditAmount), "debits must balance the credit")
	assert.True(t, credit.CreditAmount.Equal(d(6650)))

	assert.Equal(t, dutyAccount, rows[0].DebitAccount)
	assert.Empty(t, rows[0].DebitTaxCategory)
	assert.Equal(t, prepaidTaxAccount, rows[1].DebitAccount)
	assert.Equal(t, consumptionTaxCategory, rows[1].DebitTaxCategory)
	assert.Equal(t, prepaidTaxAccount, rows[2].DebitAccount)
	assert.Equal(t, localConsumptionTaxCategory, rows[2].DebitTaxCategory)

	assert.Equal(t, "輸入許可書 12345678910 関税", rows[0].Summary)
	assert.Equal(t, "輸入許可書 12345678910 支払", credit.Summary)
	assert.Equal(t, "輸入許可書番号: 12345678910, 追跡番号: RB123456789JP (支払)", credit.Memo)
}

func TestPermitEntrySkipsZeroComponents(t *testing.T) {
	p := samplePermit()
	p.CustomsDuty = decimal.Zero

	rows := PermitEntry{Permit: p}.Rows(1)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.NotEqual(t, dutyAccount, row.DebitAccount)
	}
	assert.True(t, rows[2].CreditAmount.Equal(d(1650)))
}

func TestPermitEntryAllZeroProducesNoRows(t *testing.T) {
	p := samplePermit()
	p.CustomsDuty = decimal.Zero
	p.ConsumptionTax = decimal.Zero
	p.LocalConsumptionTax = decimal.Zero

	assert.Empty(t, PermitEntry{Permit: p}.Rows(1))
}

func TestInvoiceEntryRows(t *testing.T) {
	inv := &models.Invoice{
		InvoiceNumber:  "YP5507628XX",
		IssueDate:      time.Date(2025, 10, 23, 0, 0, 0, 0, time.UTC),
		TrackingNumber: "RB123456789JP",
		TotalAmount:    d(3000),
	}

	rows := InvoiceEntry{Invoice: inv}.Rows(7)
	require.Len(t, rows, 2)

	assert.Equal(t, feeAccount, rows[0].DebitAccount)
	assert.True(t, rows[0].DebitAmount.Equal(d(3000)))
	assert.Equal(t, "請求書 YP5507628XX", rows[0].Summary)

	assert.Equal(t, creditAccount, rows[1].CreditAccount)
	assert.Equal(t, invoiceCreditSubAccount, rows[1].CreditSubAccount)
	assert.True(t, rows[1].CreditAmount.Equal(rows[0].DebitAmount))
	assert.Equal(t, "請求書 YP5507628XX 支払", rows[1].Summary)
}

func TestRowValues(t *testing.T) {
	row := Row{
		TransactionNo: 3,
		Date:          time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		DebitAccount:  dutyAccount,
		DebitAmount:   d(5000),
		Summary:       "test",
	}

	values := row.Values()
	require.Len(t, values, 27)
	assert.Equal(t, 3, values[0])
	assert.Equal(t, "2025/01/05", values[1])
	assert.Equal(t, dutyAccount, values[2])
	assert.Equal(t, float64(5000), values[8])
	assert.Equal(t, 0, values[9])
	// No credit leg: the amount cell stays empty, not zero.
	assert.Equal(t, "", values[16])
}

func TestNextTransactionNo(t *testing.T) {
	tests := []struct {
		name   string
		column [][]interface{}
		want   int
	}{
		{"empty sheet", nil, 1},
		{"plain integers", [][]interface{}{{"3"}, {"7"}, {"2"}}, 8},
		{"ignores unparsable cells", [][]interface{}{{"3"}, {"abc"}, {}, {""}, {"5"}}, 6},
		{"numeric cell values", [][]interface{}{{float64(4)}, {2}}, 5},
		{"numeric cells of a million and above", [][]interface{}{{float64(1000000)}, {"3"}}, 1000001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextTransactionNo(tt.column))
		})
	}
}

type fakeLedger struct {
	column   [][]interface{}
	appended []Row
	colErr   error
	appErr   error
}

func (f *fakeLedger) TransactionColumn(ctx context.Context) ([][]interface{}, error) {
	return f.column, f.colErr
}

func (f *fakeLedger) AppendRows(ctx context.Context, rows []Row) (int64, error) {
	if f.appErr != nil {
		return 0, f.appErr
	}
	f.appended = append(f.appended, rows...)
	return int64(len(rows) * 27), nil
}

func TestBuilderExport(t *testing.T) {
	ledger := &fakeLedger{column: [][]interface{}{{"1"}, {"2"}}}
	b := NewBuilder(ledger)

	n, err := b.Export(context.Background(), PermitEntry{Permit: samplePermit()})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, ledger.appended, 4)
	for _, row := range ledger.appended {
		assert.Equal(t, 3, row.TransactionNo)
	}
}

func TestBuilderExportNothingToWrite(t *testing.T) {
	p := samplePermit()
	p.CustomsDuty = decimal.Zero
	p.ConsumptionTax = decimal.Zero
	p.LocalConsumptionTax = decimal.Zero

	ledger := &fakeLedger{}
	n, err := NewBuilder(ledger).Export(context.Background(), PermitEntry{Permit: p})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, ledger.appended)
}

func TestBuilderExportPropagatesLedgerErrors(t *testing.T) {
	boom := errors.New("sheet unavailable")

	_, err := NewBuilder(&fakeLedger{colErr: boom}).Export(context.Background(), InvoiceEntry{Invoice: &models.Invoice{TotalAmount: d(10)}})
	assert.ErrorIs(t, err, boom)

	_, err = NewBuilder(&fakeLedger{appErr: boom}).Export(context.Background(), InvoiceEntry{Invoice: &models.Invoice{TotalAmount: d(10)}})
	assert.ErrorIs(t, err, boom)
}
