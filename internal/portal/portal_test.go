package portal

import (
	"testing"

	"kaigen/pkg/models"
)

func TestClassifyFilename(t *testing.T) {
	tests := []struct {
		name string
		want models.DocumentType
	}{
		{"請求書_YP5507628XX.pdf", models.DocumentTypeInvoice},
		{"Invoice_2025.pdf", models.DocumentTypeInvoice},
		{"輸入許可書_12345678910.pdf", models.DocumentTypeImportPermit},
		{"permit_20251023.pdf", models.DocumentTypeImportPermit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFilename(tt.name); got != tt.want {
				t.Errorf("ClassifyFilename(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
