package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"video-rater/api/internal/rating"
)

// Scopes the service account needs over the spreadsheet.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

// Sheets reads descriptions from one worksheet and appends ratings to another
// worksheet of the same spreadsheet.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	descriptions  string
	ratings       string
}

// NewSheets authorizes with a service account key and opens the spreadsheet.
func NewSheets(ctx context.Context, credentialsJSON []byte, spreadsheetID, descriptions, ratings string) (*Sheets, error) {
	return NewSheetsWithOptions(ctx, spreadsheetID, descriptions, ratings,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(Scopes...),
	)
}

// NewSheetsWithOptions is NewSheets with raw client options (endpoint, HTTP client).
func NewSheetsWithOptions(ctx context.Context, spreadsheetID, descriptions, ratings string, opts ...option.ClientOption) (*Sheets, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("spreadsheet id is empty")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Sheets{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		descriptions:  descriptions,
		ratings:       ratings,
	}, nil
}

func (s *Sheets) Close() error { return nil }

// Records reads the descriptions worksheet. The first row is the header; every
// following row becomes a record keyed by header name.
func (s *Sheets) Records(ctx context.Context) ([]rating.DescriptionRow, error) {
	records, err := s.allRecords(ctx, s.descriptions)
	if err != nil {
		return nil, err
	}
	out := make([]rating.DescriptionRow, 0, len(records))
	for _, rec := range records {
		out = append(out, rating.DescriptionRow{
			Model:       rec[rating.ColModel],
			Description: rec[rating.ColDescription],
			VideoPath:   rec[rating.ColVideoPath],
		})
	}
	return out, nil
}

// AppendRows appends all rows with a single values.append call, so a task lands
// in the ratings worksheet whole or not at all.
func (s *Sheets) AppendRows(ctx context.Context, rows []rating.RatedRow) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		cells := r.Values()
		row := make([]interface{}, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		values = append(values, row)
	}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.ratings, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append %s: %w", s.ratings, err)
	}
	return nil
}

// RatedPaths scans the ratings worksheet for rows signed by rater. The worksheet
// has no header requirement: columns are positional (rating.RatedColumns).
func (s *Sheets) RatedPaths(ctx context.Context, rater string) (map[string]bool, error) {
	grid, err := s.values(ctx, s.ratings)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, row := range grid {
		if len(row) >= 5 && row[4] == rater {
			out[row[2]] = true
		}
	}
	return out, nil
}

func (s *Sheets) allRecords(ctx context.Context, sheet string) ([]map[string]string, error) {
	grid, err := s.values(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}
	header := grid[0]
	out := make([]map[string]string, 0, len(grid)-1)
	for _, row := range grid[1:] {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Sheets) values(ctx context.Context, sheet string) ([][]string, error) {
	vr, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, sheet).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", sheet, err)
	}
	grid := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		grid[i] = make([]string, len(row))
		for j, cell := range row {
			grid[i][j] = cellString(cell)
		}
	}
	return grid, nil
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}
