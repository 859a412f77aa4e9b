package invoice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaigen/pkg/models"
)

type fakeExtractor struct {
	page *Page
	err  error
}

func (f *fakeExtractor) FirstPage(ctx context.Context, path string) (*Page, error) {
	return f.page, f.err
}

const sampleText = `請求書[YP5507628XX]
2025年10月23日
お客様名： 新白岡輸入販売株式会社 和田篤様
追跡番号： RB123456789JP -
お支払い期限： 2025年10月25日
小計： ¥2,728
消費税額10％： ¥272
合計金額： ¥3,000
`

func sampleTables() [][][]string {
	return [][][]string{{
		{"請求項目", "金額", "数量", "単位"},
		{"輸入手数料：", "¥2,000", "1", "件"},
		{"通関手数料：", "¥728", "1", ""},
	}}
}

func samplePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestParserParse(t *testing.T) {
	p := NewParser(&fakeExtractor{page: &Page{Text: sampleText, Tables: sampleTables()}})

	inv, err := p.Parse(context.Background(), samplePDF(t))
	require.NoError(t, err)

	assert.Equal(t, "YP5507628XX", inv.InvoiceNumber)
	assert.Equal(t, time.Date(2025, 10, 23, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	assert.Equal(t, "新白岡輸入販売株式会社 和田篤様", inv.CustomerName)
	assert.Equal(t, "RB123456789JP", inv.TrackingNumber)
	assert.Equal(t, time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC), inv.PaymentDueDate)
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(2728)))
	assert.True(t, inv.TaxAmount.Equal(decimal.NewFromInt(272)))
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(3000)))

	require.Len(t, inv.Items, 2)
	assert.Equal(t, "輸入手数料", inv.Items[0].Name, "trailing ： must be stripped")
	assert.True(t, inv.Items[0].Amount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "件", inv.Items[0].Unit)
	assert.Equal(t, "件", inv.Items[1].Unit, "empty unit cell falls back to 件")
}

func TestParserMissingTotalAmount(t *testing.T) {
	text := `請求書[YP5507628XX]
2025年10月23日
お客様名： テスト商事
追跡番号： RB123456789JP
お支払い期限： 2025年10月25日
`
	p := NewParser(&fakeExtractor{page: &Page{Text: text, Tables: sampleTables()}})

	_, err := p.Parse(context.Background(), samplePDF(t))
	var extractionErr *models.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "total_amount", extractionErr.Field)
}

func TestParserOptionalAmountsDefaultToZero(t *testing.T) {
	text := `請求書[AB1]
2025年1月5日
お客様名： テスト商事
追跡番号： XY99
お支払い期限： 2025年1月7日
合計金額： ¥500
`
	p := NewParser(&fakeExtractor{page: &Page{Text: text, Tables: sampleTables()}})

	inv, err := p.Parse(context.Background(), samplePDF(t))
	require.NoError(t, err)
	assert.True(t, inv.Subtotal.IsZero())
	assert.True(t, inv.TaxAmount.IsZero())
}

func TestParserEmptyPage(t *testing.T) {
	p := NewParser(&fakeExtractor{page: &Page{Text: "   \n"}})

	_, err := p.Parse(context.Background(), samplePDF(t))
	var extractionErr *models.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, "text", extractionErr.Field)
}

func TestParserExtractorError(t *testing.T) {
	boom := errors.New("corrupt xref table")
	p := NewParser(&fakeExtractor{err: boom})

	_, err := p.Parse(context.Background(), samplePDF(t))
	assert.ErrorIs(t, err, boom)
}

func TestExtractItems(t *testing.T) {
	t.Run("drops rows with empty names", func(t *testing.T) {
		tables := [][][]string{{
			{"請求項目", "金額", "数量"},
			{"", "¥100", "1"},
			{"手数料", "¥200", "2"},
		}}
		items, err := extractItems(tables)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "手数料", items[0].Name)
		assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(2)))
	})

	t.Run("unparsable quantity falls back to one", func(t *testing.T) {
		tables := [][][]string{{
			{"請求項目", "金額", "数量"},
			{"手数料", "¥200", "二"},
		}}
		items, err := extractItems(tables)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(1)))
	})

	t.Run("drops rows without a monetary amount cell", func(t *testing.T) {
		tables := [][][]string{{
			{"請求項目", "金額", "数量"},
			{"追跡番号：", "YP5507628XX", "-"},
			{"手数料", "¥200", "1"},
		}}
		items, err := extractItems(tables)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "手数料", items[0].Name)
	})

	t.Run("stops at the totals block", func(t *testing.T) {
		tables := [][][]string{{
			{"請求項目", "金額", "数量"},
			{"手数料", "¥200", "1"},
			{"小計：", "¥200", "1"},
			{"合計金額：", "¥220", "1"},
		}}
		items, err := extractItems(tables)
		require.NoError(t, err)
		require.Len(t, items, 1)
	})

	t.Run("word-split page without table structure", func(t *testing.T) {
		// Text-layer extraction flattens each text line into a row of
		// words, so the item header shares a row with the customer name
		// and a label line sits between the header and the items.
		tables := [][][]string{{
			{"請求書[YP5507628XX]"},
			{"2025年10月23日"},
			{"お客様名：", "新白岡輸入販売株式会社", "和田篤様", "請求項目", "金額", "数量", "単位"},
			{"追跡番号：", "YP5507628XX", "-"},
			{"輸入手数料：", "¥2,000", "1", "件"},
			{"通関手数料：", "¥728", "1", "件"},
			{"小計：", "¥2,728"},
			{"消費税額10％：", "¥272"},
			{"合計金額：", "¥3,000"},
			{"お支払い期限：", "2025年10月25日"},
		}}
		items, err := extractItems(tables)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "輸入手数料", items[0].Name)
		assert.True(t, items[0].Amount.Equal(decimal.NewFromInt(2000)))
		assert.Equal(t, "通関手数料", items[1].Name)
		assert.True(t, items[1].Amount.Equal(decimal.NewFromInt(728)))
	})

	t.Run("skips tables without the item header", func(t *testing.T) {
		tables := [][][]string{
			{{"会社情報", "住所"}},
			{
				{"請求項目", "金額", "数量"},
				{"手数料", "¥200", "1"},
			},
		}
		items, err := extractItems(tables)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("no qualifying table", func(t *testing.T) {
		_, err := extractItems([][][]string{{{"会社情報"}}})
		var extractionErr *models.ExtractionError
		require.ErrorAs(t, err, &extractionErr)
		assert.Equal(t, "items", extractionErr.Field)
	})
}
