package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kaigen/internal/config"
	"kaigen/internal/drive"
	"kaigen/internal/invoice"
	"kaigen/internal/journal"
	"kaigen/internal/logger"
	"kaigen/internal/permit"
	"kaigen/internal/portal"
	"kaigen/internal/sheets"
	"kaigen/internal/workflow"
	"kaigen/pkg/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync [directory]",
	Short: "Process all invoice and permit PDFs in a directory",
	Long: `Scan a directory for PDF documents, classify each as an invoice or
import permit by filename, and process them: journal rows are appended
to the accounting spreadsheet and the PDFs are archived in Google
Drive under their document type's month folder.

Documents already archived in Drive are skipped entirely, so the
command is safe to re-run over the same directory.`,
	Example: `  # Process everything downloaded earlier
  kaigen sync ./downloads

  # Only write journal rows, skip the Drive archive
  kaigen sync ./downloads --no-upload`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("no-upload", false, "Skip archiving PDFs in Google Drive")
	syncCmd.Flags().Bool("no-export", false, "Skip writing journal rows to the spreadsheet")
	syncCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runSync(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("sync-cmd")

	noUpload, _ := cmd.Flags().GetBool("no-upload")
	noExport, _ := cmd.Flags().GetBool("no-export")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	dir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	docs, err := scanDirectory(dir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		log.Warn().Str("dir", dir).Msg("No PDF documents found")
		fmt.Fprintln(cmd.OutOrStdout(), "No PDF documents found.")
		return nil
	}

	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	w, cleanup, err := buildWorkflow(ctx, cfg, !noExport, !noUpload)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := w.Run(ctx, docs)
	if err != nil {
		return fmt.Errorf("processing documents: %w", err)
	}

	printResult(cmd, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", result.Failed, len(docs))
	}
	return nil
}

// scanDirectory lists PDF files in dir as classified documents.
func scanDirectory(dir string) ([]*models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var docs []*models.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		doc, err := models.NewDocument(models.Document{
			FilePath:     filepath.Join(dir, entry.Name()),
			Type:         portal.ClassifyFilename(entry.Name()),
			DownloadedAt: info.ModTime(),
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// buildWorkflow wires parsers, ledger and archive for a processing run.
// The returned cleanup releases the oracle's client and must be called
// once the run is finished.
func buildWorkflow(ctx context.Context, cfg *config.Config, export, upload bool) (*workflow.Workflow, func(), error) {
	oracle, err := newOracle(ctx, cfg.OracleProvider)
	if err != nil {
		return nil, nil, err
	}
	cleanup := oracleCleanup(oracle)

	var exporter workflow.Exporter
	if export {
		ledger, err := sheets.NewService(ctx, cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("creating sheets service: %w", err)
		}
		exporter = journal.NewBuilder(ledger)
	}

	var storage workflow.Storage
	if upload {
		driveService, err := drive.NewService(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("creating drive service: %w", err)
		}
		storage = driveService
	}

	return workflow.New(
		invoice.NewParser(invoice.NewPDFPages(nil)),
		permit.NewParser(oracle),
		exporter,
		storage,
		cfg.FolderID,
	), cleanup, nil
}

func printResult(cmd *cobra.Command, result *workflow.Result) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"Processed: %d  Skipped: %d  Failed: %d  Journal rows written: %d\n",
		result.Processed, result.Skipped, result.Failed, result.RowsWritten)
}
