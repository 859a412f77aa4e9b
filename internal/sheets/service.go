// Package sheets writes journal rows to the accounting spreadsheet in
// Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"kaigen/internal/journal"
	"kaigen/internal/logger"
)

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service implements journal.Ledger on a Google Sheets spreadsheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
}

// NewService creates a ledger on the given spreadsheet and sheet tab.
// spreadsheet accepts either a bare spreadsheet ID or a full sheet URL.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or inline
// GOOGLE_CREDENTIALS JSON.
func NewService(ctx context.Context, spreadsheet, sheetName string) (*Service, error) {
	const op = "NewService"

	log := logger.WithComponent("sheets")

	spreadsheetID := spreadsheet
	if m := spreadsheetURLPattern.FindStringSubmatch(spreadsheet); m != nil {
		spreadsheetID = m[1]
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%s: spreadsheet ID is empty", op)
	}

	creds, err := readCredentials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: creating sheets service: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Str("sheet", sheetName).Msg("Sheets service ready")

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           log,
	}, nil
}

func readCredentials() ([]byte, error) {
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return creds, nil
	}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	return nil, fmt.Errorf("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")
}

// TransactionColumn implements journal.Ledger. It reads unformatted
// column-A values below the header row so numeric cells keep their raw
// representation.
func (s *Service) TransactionColumn(ctx context.Context) ([][]interface{}, error) {
	const op = "TransactionColumn"

	readRange := fmt.Sprintf("%s!A2:A", s.sheetName)
	resp, err := s.sheetsService.Spreadsheets.Values.
		Get(s.spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%s: reading %s: %w", op, readRange, err)
	}

	return resp.Values, nil
}

// AppendRows implements journal.Ledger. Rows are appended below the last
// data row in the order given, as raw values.
func (s *Service) AppendRows(ctx context.Context, rows []journal.Row) (int64, error) {
	const op = "AppendRows"

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}

	appendRange := fmt.Sprintf("%s!A2:AA", s.sheetName)
	resp, err := s.sheetsService.Spreadsheets.Values.
		Append(s.spreadsheetID, appendRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("%s: appending to %s: %w", op, appendRange, err)
	}

	var cells int64
	if resp.Updates != nil {
		cells = resp.Updates.UpdatedCells
	}

	s.log.Info().
		Int("rows", len(rows)).
		Int64("updated_cells", cells).
		Msg("Rows appended to spreadsheet")

	return cells, nil
}
