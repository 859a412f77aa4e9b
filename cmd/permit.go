package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kaigen/internal/journal"
	"kaigen/internal/logger"
	"kaigen/internal/permit"
	"kaigen/internal/sheets"
	"kaigen/pkg/models"
)

var permitCmd = &cobra.Command{
	Use:   "permit [pdf-file]",
	Short: "Extract structured data from an import permit PDF",
	Long: `Parse a customs import permit PDF and print the extracted data as
JSON. Permits are free-form scans, so extraction goes through a
document-understanding oracle: either the OpenAI chat API (default) or
a Google Document AI custom extractor.

With --export the permit's tax components are additionally booked as
journal rows in the accounting spreadsheet: customs duty, consumption
tax and local consumption tax debits balanced by one bank credit.

Required environment variables (openai oracle):
  OPENAI_API_KEY

Required environment variables (documentai oracle):
  GOOGLE_CLOUD_PROJECT
  DOCUMENT_AI_PROCESSOR_ID
  GOOGLE_CLOUD_LOCATION (optional, defaults to us)`,
	Example: `  # Extract permit data to stdout
  kaigen permit 輸入許可書_12345678910.pdf

  # Use a Document AI custom extractor instead of OpenAI
  kaigen permit 輸入許可書_12345678910.pdf --oracle documentai

  # Extract and append journal rows to the spreadsheet
  kaigen permit 輸入許可書_12345678910.pdf --export`,
	Args: cobra.ExactArgs(1),
	RunE: runPermit,
}

func init() {
	rootCmd.AddCommand(permitCmd)

	permitCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	permitCmd.Flags().String("oracle", "", "Oracle provider: openai or documentai (default: PERMIT_ORACLE env)")
	permitCmd.Flags().Bool("export", false, "Append journal rows to the accounting spreadsheet")
	permitCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runPermit(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("permit-cmd")

	outputPath, _ := cmd.Flags().GetString("output")
	provider, _ := cmd.Flags().GetString("oracle")
	export, _ := cmd.Flags().GetBool("export")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if provider == "" {
		provider = cfg.OracleProvider
	}

	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	oracle, err := newOracle(ctx, provider)
	if err != nil {
		return err
	}
	defer oracleCleanup(oracle)()

	startTime := time.Now()
	p, err := permit.NewParser(oracle).Parse(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("parsing permit: %w", err)
	}

	log.Info().
		Str("permit_number", p.PermitNumber).
		Str("total_amount", p.TotalAmount.String()).
		Str("oracle", provider).
		Dur("duration", time.Since(startTime)).
		Msg("Import permit parsed")

	if export {
		if err := exportPermit(ctx, cmd, cfg.SpreadsheetID, cfg.SheetName, p); err != nil {
			return err
		}
	}

	return writeJSON(p, outputPath)
}

func exportPermit(ctx context.Context, cmd *cobra.Command, spreadsheetID, sheetName string, p *models.ImportPermit) error {
	ledger, err := sheets.NewService(ctx, spreadsheetID, sheetName)
	if err != nil {
		return fmt.Errorf("creating sheets service: %w", err)
	}

	rows, err := journal.NewBuilder(ledger).Export(ctx, journal.PermitEntry{Permit: p})
	if err != nil {
		return fmt.Errorf("exporting journal rows: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Appended %d journal rows for permit %s\n", rows, p.PermitNumber)
	return nil
}
