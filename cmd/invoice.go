package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kaigen/internal/invoice"
	"kaigen/internal/journal"
	"kaigen/internal/logger"
	"kaigen/internal/ocr"
	"kaigen/internal/sheets"
	"kaigen/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice [pdf-file]",
	Short: "Extract structured data from a billing invoice PDF",
	Long: `Parse a vendor invoice PDF and print the extracted data as JSON.
The invoice layout is fixed, so extraction works on the embedded text
layer; scanned invoices fall back to Google Cloud Vision OCR when
--ocr is set.

With --export the invoice is additionally booked: a payment fee debit
and a bank credit row are appended to the accounting spreadsheet.

Environment variables for --export:
  GOOGLE_SPREADSHEET_ID  - Target spreadsheet (ID or URL)
  GOOGLE_SHEET_NAME      - Sheet tab name
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS`,
	Example: `  # Extract invoice data to stdout
  kaigen invoice 請求書_YP5507628XX.pdf

  # Save extracted data to a file
  kaigen invoice 請求書_YP5507628XX.pdf -o invoice.json

  # Extract and append journal rows to the spreadsheet
  kaigen invoice 請求書_YP5507628XX.pdf --export`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoice,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)

	invoiceCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	invoiceCmd.Flags().Bool("ocr", false, "Fall back to Cloud Vision OCR for scanned PDFs")
	invoiceCmd.Flags().Bool("export", false, "Append journal rows to the accounting spreadsheet")
	invoiceCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runInvoice(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice-cmd")

	outputPath, _ := cmd.Flags().GetString("output")
	useOCR, _ := cmd.Flags().GetBool("ocr")
	export, _ := cmd.Flags().GetBool("export")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	var ocrClient invoice.OCRClient
	if useOCR {
		service, err := ocr.NewService(ctx)
		if err != nil {
			return fmt.Errorf("creating OCR service: %w", err)
		}
		defer service.Close()
		ocrClient = service
	}

	parser := invoice.NewParser(invoice.NewPDFPages(ocrClient))

	startTime := time.Now()
	inv, err := parser.Parse(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("parsing invoice: %w", err)
	}

	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("total_amount", inv.TotalAmount.String()).
		Dur("duration", time.Since(startTime)).
		Msg("Invoice parsed")

	if export {
		if err := exportInvoice(ctx, cmd, inv); err != nil {
			return err
		}
	}

	return writeJSON(inv, outputPath)
}

func exportInvoice(ctx context.Context, cmd *cobra.Command, inv *models.Invoice) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ledger, err := sheets.NewService(ctx, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		return fmt.Errorf("creating sheets service: %w", err)
	}

	rows, err := journal.NewBuilder(ledger).Export(ctx, journal.InvoiceEntry{Invoice: inv})
	if err != nil {
		return fmt.Errorf("exporting journal rows: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Appended %d journal rows for invoice %s\n", rows, inv.InvoiceNumber)
	return nil
}

// writeJSON marshals v indented to outputPath, or stdout when empty.
func writeJSON(v interface{}, outputPath string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}
