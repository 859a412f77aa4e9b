// Package permit extracts structured data from customs import permit
// PDFs. Unlike invoices, permits are free-form scans without a stable
// layout, so extraction goes through a document-understanding oracle that
// answers with a JSON payload the parser decodes and validates.
package permit

import "context"

// Oracle answers a fixed extraction task over a PDF document with a JSON
// payload. Implementations may wrap the payload in Markdown code fences.
type Oracle interface {
	Extract(ctx context.Context, pdfData []byte) (string, error)
}
