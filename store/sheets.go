package store

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"github.com/digicard/backend/ratelimit"
)

// Sheets implements Tabular over the Google Sheets v4 API for one workbook.
// Every remote call goes through the shared rate limiter so a bulk drain
// cannot burn the tenant's per-user quota.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	limiter       *ratelimit.RateLimiter
}

// NewSheets creates a Tabular adapter bound to the given workbook.
func NewSheets(svc *sheets.Service, spreadsheetID string, limiter *ratelimit.RateLimiter) *Sheets {
	if limiter == nil {
		limiter = ratelimit.NewRateLimiter(nil)
	}
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, limiter: limiter}
}

// SpreadsheetID returns the bound workbook ID.
func (s *Sheets) SpreadsheetID() string {
	return s.spreadsheetID
}

func (s *Sheets) properties(ctx context.Context) ([]*sheets.SheetProperties, error) {
	var props []*sheets.SheetProperties
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
			Fields("sheets.properties").Context(ctx).Do()
		if err != nil {
			return err
		}
		props = props[:0]
		for _, sh := range resp.Sheets {
			props = append(props, sh.Properties)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching sheet properties: %w", err)
	}
	return props, nil
}

// SheetTitles implements Tabular.
func (s *Sheets) SheetTitles(ctx context.Context) ([]string, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(props))
	for _, p := range props {
		titles = append(titles, p.Title)
	}
	return titles, nil
}

// SheetID implements Tabular.
func (s *Sheets) SheetID(ctx context.Context, title string) (int64, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return 0, err
	}
	if len(props) == 0 {
		return 0, fmt.Errorf("workbook %s has no sheets", s.spreadsheetID)
	}
	if title == "" {
		return props[0].SheetId, nil
	}
	for _, p := range props {
		if p.Title == title {
			return p.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in workbook", title)
}

// AddSheets implements Tabular.
func (s *Sheets) AddSheets(ctx context.Context, titles []string) error {
	if len(titles) == 0 {
		return nil
	}
	requests := make([]*sheets.Request, 0, len(titles))
	for _, title := range titles {
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		})
	}
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: requests,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("adding sheets %v: %w", titles, err)
	}
	return nil
}

// Read implements Tabular.
func (s *Sheets) Read(ctx context.Context, rng string) ([][]string, error) {
	var rows [][]string
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return err
		}
		rows = rows[:0]
		for _, raw := range resp.Values {
			row := make([]string, len(raw))
			for i, cell := range raw {
				row[i] = fmt.Sprint(cell)
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rng, err)
	}
	return rows, nil
}

func (s *Sheets) append(ctx context.Context, rng, valueInputOption string, rows [][]interface{}) error {
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &sheets.ValueRange{
			Values: rows,
		}).ValueInputOption(valueInputOption).
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("appending to %s: %w", rng, err)
	}
	return nil
}

// Append implements Tabular. USER_ENTERED so a leading apostrophe in a cell
// forces text instead of being stored literally.
func (s *Sheets) Append(ctx context.Context, rng string, rows [][]interface{}) error {
	return s.append(ctx, rng, "USER_ENTERED", rows)
}

// AppendRaw implements Tabular.
func (s *Sheets) AppendRaw(ctx context.Context, rng string, rows [][]interface{}) error {
	return s.append(ctx, rng, "RAW", rows)
}

// Update implements Tabular.
func (s *Sheets) Update(ctx context.Context, rng string, rows [][]interface{}) error {
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
			Values: rows,
		}).ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", rng, err)
	}
	return nil
}

// Clear implements Tabular.
func (s *Sheets) Clear(ctx context.Context, rng string) error {
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clearing %s: %w", rng, err)
	}
	return nil
}

// DeleteTopRow implements Tabular.
func (s *Sheets) DeleteTopRow(ctx context.Context, sheetTitle string) error {
	sheetID, err := s.SheetID(ctx, sheetTitle)
	if err != nil {
		return err
	}
	err = s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				DeleteDimension: &sheets.DeleteDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: 0,
						EndIndex:   1,
					},
				},
			}},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting top row of %s: %w", sheetTitle, err)
	}
	return nil
}

// InsertColumnWithHeader implements Tabular. The insert and the header label
// go out as one batchUpdate so a crash between them cannot leave an unlabeled
// column behind.
func (s *Sheets) InsertColumnWithHeader(ctx context.Context, sheetTitle string, index int64, header string) error {
	sheetID, err := s.SheetID(ctx, sheetTitle)
	if err != nil {
		return err
	}
	err = s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{
					InsertDimension: &sheets.InsertDimensionRequest{
						Range: &sheets.DimensionRange{
							SheetId:    sheetID,
							Dimension:  "COLUMNS",
							StartIndex: index,
							EndIndex:   index + 1,
						},
						InheritFromBefore: true,
					},
				},
				{
					UpdateCells: &sheets.UpdateCellsRequest{
						Start: &sheets.GridCoordinate{
							SheetId:     sheetID,
							RowIndex:    0,
							ColumnIndex: index,
						},
						Rows: []*sheets.RowData{{
							Values: []*sheets.CellData{{
								UserEnteredValue: &sheets.ExtendedValue{StringValue: &header},
							}},
						}},
						Fields: "userEnteredValue",
					},
				},
			},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting column %q in %s: %w", header, sheetTitle, err)
	}
	return nil
}

// BatchSetValues implements Tabular.
func (s *Sheets) BatchSetValues(ctx context.Context, data map[string][][]interface{}) error {
	if len(data) == 0 {
		return nil
	}
	valueRanges := make([]*sheets.ValueRange, 0, len(data))
	for rng, rows := range data {
		valueRanges = append(valueRanges, &sheets.ValueRange{Range: rng, Values: rows})
	}
	err := s.limiter.ExecuteWithRetry(ctx, func() error {
		_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             valueRanges,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("batch updating %d ranges: %w", len(data), err)
	}
	return nil
}
