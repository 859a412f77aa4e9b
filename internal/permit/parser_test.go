package permit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaigen/pkg/models"
)

type fakeOracle struct {
	answer string
	err    error
	got    []byte
}

func (f *fakeOracle) Extract(ctx context.Context, pdfData []byte) (string, error) {
	f.got = pdfData
	return f.answer, f.err
}

const sampleAnswer = `{
  "permit_number": "12345678910",
  "issue_date": "2025-10-23",
  "importer_name": "新白岡輸入販売株式会社 和田篤様",
  "tracking_number": "YP5507887XX",
  "subtotal": 10000,
  "customs_duty": 5000,
  "consumption_tax": 1500,
  "local_consumption_tax": 150,
  "total_amount": 16650,
  "items": [
    {"item_name": "商品名1", "amount": "¥5,000", "quantity": 1, "unit": "個"},
    {"item_name": "商品名2", "amount": 5000}
  ]
}`

func samplePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "permit.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestParserParse(t *testing.T) {
	oracle := &fakeOracle{answer: sampleAnswer}
	p := NewParser(oracle)

	permit, err := p.Parse(context.Background(), samplePDF(t))
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.4"), oracle.got, "oracle receives the raw PDF bytes")
	assert.Equal(t, "12345678910", permit.PermitNumber)
	assert.Equal(t, time.Date(2025, 10, 23, 0, 0, 0, 0, time.UTC), permit.IssueDate)
	assert.Equal(t, "新白岡輸入販売株式会社 和田篤様", permit.ImporterName)
	assert.Equal(t, "YP5507887XX", permit.TrackingNumber)
	assert.True(t, permit.CustomsDuty.Equal(decimal.NewFromInt(5000)))
	assert.True(t, permit.ConsumptionTax.Equal(decimal.NewFromInt(1500)))
	assert.True(t, permit.LocalConsumptionTax.Equal(decimal.NewFromInt(150)))
	assert.True(t, permit.TotalAmount.Equal(decimal.NewFromInt(16650)))

	require.Len(t, permit.Items, 2)
	assert.Equal(t, "商品名1", permit.Items[0].Name)
	assert.True(t, permit.Items[0].Amount.Equal(decimal.NewFromInt(5000)), "currency symbols and commas are cleaned")
	assert.Equal(t, "個", permit.Items[0].Unit)
	assert.True(t, permit.Items[1].Quantity.Equal(decimal.NewFromInt(1)), "missing quantity defaults to 1")
	assert.Equal(t, "件", permit.Items[1].Unit, "missing unit defaults to 件")
}

func TestParserStripsCodeFences(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"json fence", "```json\n" + sampleAnswer + "\n```"},
		{"bare fence", "```\n" + sampleAnswer + "\n```"},
		{"fence with preamble", "以下が抽出結果です。\n```json\n" + sampleAnswer + "\n```\nご確認ください。"},
		{"unterminated fence", "```json\n" + sampleAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(&fakeOracle{answer: tt.answer})
			permit, err := p.Parse(context.Background(), samplePDF(t))
			require.NoError(t, err)
			assert.Equal(t, "12345678910", permit.PermitNumber)
		})
	}
}

func TestParserMissingIssueDate(t *testing.T) {
	p := NewParser(&fakeOracle{answer: `{"permit_number": "X1", "total_amount": 100}`})

	_, err := p.Parse(context.Background(), samplePDF(t))
	var extractionErr *models.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "issue_date", extractionErr.Field)
}

func TestParserMalformedIssueDate(t *testing.T) {
	p := NewParser(&fakeOracle{answer: `{"issue_date": "2025年10月23日"}`})

	_, err := p.Parse(context.Background(), samplePDF(t))
	var extractionErr *models.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "issue_date", extractionErr.Field)
}

func TestParserInvalidJSON(t *testing.T) {
	p := NewParser(&fakeOracle{answer: "the document seems to be a receipt"})

	_, err := p.Parse(context.Background(), samplePDF(t))
	var extractionErr *models.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "oracle_response", extractionErr.Field)
}

func TestParserAmountDefaults(t *testing.T) {
	answer := `{
  "permit_number": "X1",
  "issue_date": "2025-01-05",
  "customs_duty": "-",
  "consumption_tax": "",
  "total_amount": "1,000"
}`
	p := NewParser(&fakeOracle{answer: answer})

	permit, err := p.Parse(context.Background(), samplePDF(t))
	require.NoError(t, err)
	assert.True(t, permit.CustomsDuty.IsZero())
	assert.True(t, permit.ConsumptionTax.IsZero())
	assert.True(t, permit.LocalConsumptionTax.IsZero())
	assert.True(t, permit.TotalAmount.Equal(decimal.NewFromInt(1000)))
}

func TestParserMissingFile(t *testing.T) {
	p := NewParser(&fakeOracle{answer: sampleAnswer})

	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, models.ErrMissingFile)
}

func TestParserItemWithEmptyName(t *testing.T) {
	answer := `{
  "issue_date": "2025-01-05",
  "items": [{"amount": 100}]
}`
	p := NewParser(&fakeOracle{answer: answer})

	_, err := p.Parse(context.Background(), samplePDF(t))
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
