// Package workflow orchestrates document processing end to end: parse a
// downloaded PDF, write its journal rows to the ledger and archive the
// file in Drive. Documents already archived are skipped entirely so
// re-runs never produce duplicate bookkeeping rows.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kaigen/internal/journal"
	"kaigen/internal/logger"
	"kaigen/pkg/models"
)

// InvoiceParser extracts an invoice from a billing PDF.
type InvoiceParser interface {
	Parse(ctx context.Context, path string) (*models.Invoice, error)
}

// PermitParser extracts an import permit from a customs PDF.
type PermitParser interface {
	Parse(ctx context.Context, path string) (*models.ImportPermit, error)
}

// Exporter writes a document's journal rows to the ledger.
type Exporter interface {
	Export(ctx context.Context, src journal.Source) (int, error)
}

// Storage is the document archive boundary.
type Storage interface {
	Exists(ctx context.Context, filePath, baseFolderID string, issueDate time.Time) (bool, error)
	Upload(ctx context.Context, filePath, baseFolderID string, issueDate time.Time) error
}

// FolderResolver maps a document type to its archive base folder.
type FolderResolver func(models.DocumentType) string

// Result summarizes one workflow run.
type Result struct {
	Processed   int
	Skipped     int
	Failed      int
	RowsWritten int
}

// Workflow processes downloaded documents one at a time. A failure on
// one document is logged and counted, never aborts the run.
type Workflow struct {
	invoices InvoiceParser
	permits  PermitParser
	exporter Exporter
	storage  Storage
	folderID FolderResolver
	log      zerolog.Logger
}

// New creates a workflow. storage may be nil to skip archiving, exporter
// may be nil to skip ledger writes.
func New(invoices InvoiceParser, permits PermitParser, exporter Exporter, storage Storage, folderID FolderResolver) *Workflow {
	return &Workflow{
		invoices: invoices,
		permits:  permits,
		exporter: exporter,
		storage:  storage,
		folderID: folderID,
		log:      logger.WithComponent("workflow"),
	}
}

// Run processes all documents and reports per-run totals. The returned
// error is reserved for conditions that prevent the run itself; document
// level failures only surface in Result.Failed.
func (w *Workflow) Run(ctx context.Context, docs []*models.Document) (*Result, error) {
	result := &Result{}

	w.log.Info().Int("documents", len(docs)).Msg("Processing documents")

	for _, doc := range docs {
		outcome, rows, err := w.processDocument(ctx, doc)
		if err != nil {
			w.log.Error().
				Err(err).
				Str("type", string(doc.Type)).
				Str("file", doc.FilePath).
				Msg("Document processing failed, continuing with next")
			result.Failed++
			continue
		}
		result.RowsWritten += rows
		if outcome == outcomeSkipped {
			result.Skipped++
		} else {
			result.Processed++
		}
	}

	w.log.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("rows_written", result.RowsWritten).
		Msg("Document processing finished")

	return result, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
)

func (w *Workflow) processDocument(ctx context.Context, doc *models.Document) (outcome, int, error) {
	switch doc.Type {
	case models.DocumentTypeImportPermit:
		permit, err := w.permits.Parse(ctx, doc.FilePath)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing permit: %w", err)
		}
		return w.book(ctx, doc, journal.PermitEntry{Permit: permit}, permit.IssueDate)

	case models.DocumentTypeInvoice:
		invoice, err := w.invoices.Parse(ctx, doc.FilePath)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing invoice: %w", err)
		}
		return w.book(ctx, doc, journal.InvoiceEntry{Invoice: invoice}, invoice.IssueDate)

	default:
		return 0, 0, fmt.Errorf("unknown document type %q", doc.Type)
	}
}

// book writes journal rows and archives the file. When the document is
// already archived both steps are skipped, keeping the ledger free of
// duplicate transactions.
func (w *Workflow) book(ctx context.Context, doc *models.Document, src journal.Source, issueDate time.Time) (outcome, int, error) {
	if w.storage != nil {
		exists, err := w.storage.Exists(ctx, doc.FilePath, w.folderID(doc.Type), issueDate)
		if err != nil {
			return 0, 0, fmt.Errorf("checking archive for %s: %w", src.Ref(), err)
		}
		if exists {
			w.log.Info().
				Str("document", src.Ref()).
				Str("type", string(doc.Type)).
				Msg("Document already archived, skipping")
			return outcomeSkipped, 0, nil
		}
	}

	var rows int
	if w.exporter != nil {
		var err error
		rows, err = w.exporter.Export(ctx, src)
		if err != nil {
			return 0, 0, fmt.Errorf("exporting journal rows for %s: %w", src.Ref(), err)
		}
	}

	if w.storage != nil {
		if err := w.storage.Upload(ctx, doc.FilePath, w.folderID(doc.Type), issueDate); err != nil {
			return 0, 0, fmt.Errorf("archiving %s: %w", src.Ref(), err)
		}
	}

	return outcomeProcessed, rows, nil
}
