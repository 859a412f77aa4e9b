package invoice

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"kaigen/internal/logger"
	"kaigen/pkg/models"
)

// OCRClient recognizes text in a PDF for documents whose pages carry no
// embedded text layer.
type OCRClient interface {
	ProcessPDF(ctx context.Context, data []byte) (string, error)
}

// PDFPages extracts text and table rows from PDF files using the embedded
// text layer, falling back to OCR when a page is image-only and an OCR
// client is configured.
type PDFPages struct {
	ocr OCRClient
	log zerolog.Logger
}

// NewPDFPages creates a page extractor. ocr may be nil, in which case
// image-only PDFs fail with an extraction error.
func NewPDFPages(ocr OCRClient) *PDFPages {
	return &PDFPages{
		ocr: ocr,
		log: logger.WithComponent("invoice_pdf"),
	}
}

// FirstPage implements PageExtractor. The billing PDFs render their item
// table as aligned text rows, so each text row doubles as a table row
// with its words as cells.
func (p *PDFPages) FirstPage(ctx context.Context, path string) (*Page, error) {
	const op = "FirstPage"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, models.ErrMissingFile)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: opening %s: %w", op, path, err)
	}
	defer f.Close()

	if reader.NumPage() == 0 {
		return nil, models.NewExtractionError("pages", "PDF contains no pages")
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return nil, models.NewExtractionError("pages", "first page is unreadable")
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("%s: reading text rows of %s: %w", op, path, err)
	}

	var text strings.Builder
	var table [][]string
	for _, row := range rows {
		var cells []string
		for _, word := range row.Content {
			if s := strings.TrimSpace(word.S); s != "" {
				cells = append(cells, s)
			}
		}
		if len(cells) == 0 {
			continue
		}
		text.WriteString(strings.Join(cells, " "))
		text.WriteString("\n")
		table = append(table, cells)
	}

	if strings.TrimSpace(text.String()) == "" {
		return p.ocrFallback(ctx, path)
	}

	return &Page{
		Text:   text.String(),
		Tables: [][][]string{table},
	}, nil
}

// ocrFallback recognizes a scanned page. OCR yields running text only, so
// table rows are reconstructed from its lines.
func (p *PDFPages) ocrFallback(ctx context.Context, path string) (*Page, error) {
	const op = "ocrFallback"

	if p.ocr == nil {
		return nil, models.NewExtractionError("text", "PDF has no text layer and OCR is not configured")
	}

	p.log.Info().Str("path", path).Msg("No embedded text layer, running OCR")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", op, path, err)
	}

	text, err := p.ocr.ProcessPDF(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: recognizing %s: %w", op, path, err)
	}

	var table [][]string
	for _, line := range strings.Split(text, "\n") {
		cells := strings.Fields(line)
		if len(cells) > 0 {
			table = append(table, cells)
		}
	}

	return &Page{
		Text:   text,
		Tables: [][][]string{table},
	}, nil
}
