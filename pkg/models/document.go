package models

import (
	"fmt"
	"os"
	"time"
)

// DocumentType classifies a downloaded portal document.
type DocumentType string

const (
	DocumentTypeInvoice      DocumentType = "請求書"
	DocumentTypeImportPermit DocumentType = "輸入許可書"
)

// Document represents one PDF downloaded from the vendor portal, before it
// has been extracted into an Invoice or ImportPermit.
type Document struct {
	FilePath     string
	DownloadURL  string
	Type         DocumentType
	DownloadedAt time.Time
}

// NewDocument validates d and returns an immutable copy. The downloaded
// file must exist on disk.
func NewDocument(d Document) (*Document, error) {
	if _, err := os.Stat(d.FilePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, d.FilePath)
	}
	out := d
	return &out, nil
}
