// Package ocr recognizes text in scanned PDF documents using the Google
// Cloud Vision API. It backs invoice parsing for documents that carry no
// embedded text layer.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// MaxFileSizeBytes is the synchronous Vision API file size limit (20MB).
const MaxFileSizeBytes = 20 * 1024 * 1024

var (
	ErrMissingCredentials = errors.New("no Google Cloud credentials found in environment")
	ErrInvalidPDF         = errors.New("data is not a valid PDF document")
	ErrPDFTooLarge        = errors.New("PDF exceeds the synchronous processing size limit")
	ErrEmptyDocument      = errors.New("no text recognized in document")
)

// Service recognizes document text through the Vision API.
type Service struct {
	client *vision.ImageAnnotatorClient
}

// NewService creates an OCR service with credentials from the environment:
// inline GOOGLE_CREDENTIALS JSON, a GOOGLE_APPLICATION_CREDENTIALS file,
// or application default credentials, in that order.
func NewService(ctx context.Context) (*Service, error) {
	const op = "NewService"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, fmt.Errorf("%s: creating client with GOOGLE_CREDENTIALS: %w", op, err)
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, fmt.Errorf("%s: creating client with GOOGLE_APPLICATION_CREDENTIALS: %w", op, err)
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
		}
	}

	return &Service{client: client}, nil
}

// ProcessPDF runs document text detection over all pages of the PDF and
// returns the recognized text, pages joined by blank lines.
func (s *Service) ProcessPDF(ctx context.Context, data []byte) (string, error) {
	const op = "ProcessPDF"

	if len(data) > MaxFileSizeBytes {
		return "", fmt.Errorf("%s: %d bytes: %w", op, len(data), ErrPDFTooLarge)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return "", fmt.Errorf("%s: missing PDF header: %w", op, ErrInvalidPDF)
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := s.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: Vision API call: %w", op, err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("%s: empty Vision API response", op)
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", fmt.Errorf("%s: Vision API error: %s", op, fileResp.Error.Message)
	}

	var text strings.Builder
	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return "", fmt.Errorf("%s: page %d: %s", op, pageIdx+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(page.FullTextAnnotation.Text)
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyDocument)
	}

	return text.String(), nil
}

// Close closes the underlying Vision client.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
