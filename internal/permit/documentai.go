package permit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// ErrMissingProject reports absent Document AI project configuration.
var ErrMissingProject = errors.New("GOOGLE_CLOUD_PROJECT is not set")

// ErrMissingProcessor reports an absent Document AI processor ID.
var ErrMissingProcessor = errors.New("DOCUMENT_AI_PROCESSOR_ID is not set")

const processTimeout = 60 * time.Second

// DocumentAIOracle answers extraction tasks through a Google Document AI
// custom extractor processor. Its entities are mapped onto the same JSON
// payload shape the chat-based oracle produces, so both feed one parser.
type DocumentAIOracle struct {
	client      *documentai.DocumentProcessorClient
	projectID   string
	location    string
	processorID string
}

// NewDocumentAIOracle creates an oracle configured from the environment:
// GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION (defaults to "us") and
// DOCUMENT_AI_PROCESSOR_ID, with credentials from GOOGLE_CREDENTIALS or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewDocumentAIOracle(ctx context.Context) (*DocumentAIOracle, error) {
	const op = "NewDocumentAIOracle"

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingProject)
	}
	processorID := os.Getenv("DOCUMENT_AI_PROCESSOR_ID")
	if processorID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingProcessor)
	}
	location := os.Getenv("GOOGLE_CLOUD_LOCATION")
	if location == "" {
		location = "us"
	}

	var clientOptions []option.ClientOption
	if location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("%s: creating Document AI client for location %s: %w", op, location, err)
	}

	return &DocumentAIOracle{
		client:      client,
		projectID:   projectID,
		location:    location,
		processorID: processorID,
	}, nil
}

// Extract implements Oracle.
func (o *DocumentAIOracle) Extract(ctx context.Context, pdfData []byte) (string, error) {
	const op = "Extract"

	processCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/processors/%s",
			o.projectID, o.location, o.processorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfData,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := o.client.ProcessDocument(processCtx, req)
	if err != nil {
		return "", fmt.Errorf("%s: processing document: %w", op, err)
	}
	if resp.Document == nil {
		return "", fmt.Errorf("%s: no document in Document AI response", op)
	}

	payload := map[string]interface{}{"items": []interface{}{}}
	var items []interface{}
	for _, entity := range resp.Document.Entities {
		value := strings.TrimSpace(entity.MentionText)
		switch entity.Type {
		case "permit_number", "issue_date", "importer_name", "tracking_number":
			if entity.Type == "issue_date" {
				if date := normalizedDate(entity); date != "" {
					value = date
				}
			}
			payload[entity.Type] = value
		case "subtotal", "customs_duty", "consumption_tax", "local_consumption_tax", "total_amount":
			payload[entity.Type] = value
		case "item":
			item := map[string]interface{}{}
			for _, prop := range entity.Properties {
				switch prop.Type {
				case "item_name", "unit":
					item[prop.Type] = strings.TrimSpace(prop.MentionText)
				case "amount", "quantity":
					item[prop.Type] = strings.TrimSpace(prop.MentionText)
				}
			}
			items = append(items, item)
		}
	}
	if items != nil {
		payload["items"] = items
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encoding payload: %w", op, err)
	}
	return string(encoded), nil
}

// normalizedDate prefers the processor's normalized date value over the
// raw mention text.
func normalizedDate(entity *documentaipb.Document_Entity) string {
	if entity.NormalizedValue == nil {
		return ""
	}
	date := entity.NormalizedValue.GetDateValue()
	if date == nil {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", date.Year, date.Month, date.Day)
}

// Close closes the underlying Document AI client.
func (o *DocumentAIOracle) Close() error {
	if o.client != nil {
		return o.client.Close()
	}
	return nil
}
