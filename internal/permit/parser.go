package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kaigen/internal/logger"
	"kaigen/internal/moneyx"
	"kaigen/pkg/models"
)

// Parser turns import permit PDFs into validated ImportPermit entities by
// consulting an oracle and decoding its JSON answer.
type Parser struct {
	oracle Oracle
	log    zerolog.Logger
}

// NewParser creates a permit parser backed by oracle.
func NewParser(oracle Oracle) *Parser {
	return &Parser{
		oracle: oracle,
		log:    logger.WithComponent("permit"),
	}
}

// Parse extracts permit fields from the PDF at path. The issue date is
// mandatory; monetary fields absent from the oracle's answer default to
// zero and item quantities to one.
func (p *Parser) Parse(ctx context.Context, path string) (*models.ImportPermit, error) {
	const op = "Parse"

	p.log.Info().Str("path", path).Msg("Parsing import permit PDF")

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, models.ErrMissingFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", op, path, err)
	}

	answer, err := p.oracle.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: querying oracle for %s: %w", op, path, err)
	}

	payload, err := decodePayload(answer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	permit, err := p.buildPermit(payload, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info().
		Str("permit_number", permit.PermitNumber).
		Str("total_amount", permit.TotalAmount.String()).
		Int("items", len(permit.Items)).
		Msg("Import permit parsed")

	return permit, nil
}

// decodePayload strips an optional Markdown code fence and decodes the
// JSON object. Numbers are kept as json.Number so monetary values reach
// the decimal conversion without a float round trip.
func decodePayload(answer string) (map[string]interface{}, error) {
	text := stripCodeFence(strings.TrimSpace(answer))

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, models.WrapExtractionError("oracle_response", "answer is not a JSON object", err)
	}
	return payload, nil
}

func stripCodeFence(text string) string {
	var start int
	if i := strings.Index(text, "```json"); i >= 0 {
		start = i + len("```json")
	} else if i := strings.Index(text, "```"); i >= 0 {
		start = i + len("```")
	} else {
		return text
	}

	end := strings.Index(text[start:], "```")
	if end < 0 {
		return strings.TrimSpace(text[start:])
	}
	return strings.TrimSpace(text[start : start+end])
}

func (p *Parser) buildPermit(payload map[string]interface{}, path string) (*models.ImportPermit, error) {
	issueDateRaw, _ := payload["issue_date"].(string)
	if issueDateRaw == "" {
		return nil, models.NewExtractionError("issue_date", "oracle answer has no issue date")
	}
	issueDate, err := time.Parse("2006-01-02", issueDateRaw)
	if err != nil {
		return nil, models.WrapExtractionError("issue_date", "not an ISO date", err)
	}

	totalAmount, err := moneyx.Parse(payload["total_amount"], "total_amount", "0")
	if err != nil {
		return nil, err
	}
	customsDuty, err := moneyx.Parse(payload["customs_duty"], "customs_duty", "0")
	if err != nil {
		return nil, err
	}
	consumptionTax, err := moneyx.Parse(payload["consumption_tax"], "consumption_tax", "0")
	if err != nil {
		return nil, err
	}
	localConsumptionTax, err := moneyx.Parse(payload["local_consumption_tax"], "local_consumption_tax", "0")
	if err != nil {
		return nil, err
	}
	subtotal, err := moneyx.Parse(payload["subtotal"], "subtotal", "0")
	if err != nil {
		return nil, err
	}

	items, err := buildItems(payload["items"])
	if err != nil {
		return nil, err
	}

	return models.NewImportPermit(models.ImportPermit{
		PermitNumber:        stringField(payload, "permit_number"),
		IssueDate:           issueDate,
		ImporterName:        stringField(payload, "importer_name"),
		TrackingNumber:      stringField(payload, "tracking_number"),
		TotalAmount:         totalAmount,
		CustomsDuty:         customsDuty,
		ConsumptionTax:      consumptionTax,
		LocalConsumptionTax: localConsumptionTax,
		Subtotal:            subtotal,
		Items:               items,
		SourceFile:          path,
	})
}

func buildItems(raw interface{}) ([]models.LineItem, error) {
	list, _ := raw.([]interface{})

	var items []models.LineItem
	for _, entry := range list {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		amount, err := moneyx.Parse(fields["amount"], "items.amount", "0")
		if err != nil {
			return nil, err
		}
		quantity, err := moneyx.Parse(fields["quantity"], "items.quantity", "1")
		if err != nil {
			return nil, err
		}

		unit := stringField(fields, "unit")
		if unit == "" {
			unit = "件"
		}

		item, err := models.NewLineItem(stringField(fields, "item_name"), amount, quantity, unit)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func stringField(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}
