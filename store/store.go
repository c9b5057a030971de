// Package store adapts Google Sheets and Drive into generic tabular and
// object stores. Adapters here handle rate limiting and transient retries;
// business logic (sheet naming, row formats, queue semantics) lives in the
// packages that consume these interfaces.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Tabular is a remote tabular store addressed by sheet title and A1 ranges.
// A single Tabular is bound to one workbook (spreadsheet).
type Tabular interface {
	// SheetTitles returns the workbook's sheet titles in tab order.
	SheetTitles(ctx context.Context) ([]string, error)

	// SheetID resolves a sheet title to its numeric sheet ID. An empty
	// title resolves to the first sheet in the workbook.
	SheetID(ctx context.Context, title string) (int64, error)

	// AddSheets creates the given sheets in a single batched call.
	AddSheets(ctx context.Context, titles []string) error

	// Read returns cell values in the given A1 range as strings.
	Read(ctx context.Context, rng string) ([][]string, error)

	// Append appends rows after the last data row of the range's sheet,
	// with user-entered parsing (a leading apostrophe forces text).
	Append(ctx context.Context, rng string, rows [][]interface{}) error

	// AppendRaw appends rows with raw values, no cell parsing.
	AppendRaw(ctx context.Context, rng string, rows [][]interface{}) error

	// Update overwrites the given range with raw values.
	Update(ctx context.Context, rng string, rows [][]interface{}) error

	// Clear removes all values in the given range.
	Clear(ctx context.Context, rng string) error

	// DeleteTopRow removes the first row of the sheet, shifting the rest up.
	DeleteTopRow(ctx context.Context, sheetTitle string) error

	// InsertColumnWithHeader inserts a column at the given zero-based index
	// (inheriting formatting from the column before it) and writes the
	// header label into its first cell, as one batched call.
	InsertColumnWithHeader(ctx context.Context, sheetTitle string, index int64, header string) error

	// BatchSetValues writes several ranges in a single raw-values call.
	BatchSetValues(ctx context.Context, data map[string][][]interface{}) error
}

// Objects is a remote blob store with folder scoping.
type Objects interface {
	// EnsureFolder finds a folder by name or creates it, returning its ID.
	EnsureFolder(ctx context.Context, name string) (string, error)

	// Upload stores content as a new file in the folder, returning its ID.
	Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error)

	// Download returns a file's content.
	Download(ctx context.Context, fileID string) ([]byte, error)

	// Delete removes a file.
	Delete(ctx context.Context, fileID string) error

	// CreateWorkbook creates a new empty spreadsheet in the folder and
	// returns its ID.
	CreateWorkbook(ctx context.Context, folderID, title string) (string, error)
}

// RangeOn builds an A1 range scoped to a sheet, quoting the title so
// underscores and spaces in tenant sheet names never break the reference.
// An empty rng addresses the whole sheet.
func RangeOn(sheetTitle, rng string) string {
	quoted := "'" + strings.ReplaceAll(sheetTitle, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return fmt.Sprintf("%s!%s", quoted, rng)
}

// ColumnLetter converts a zero-based column index to its A1 letter form
// (0 -> A, 25 -> Z, 26 -> AA).
func ColumnLetter(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}
