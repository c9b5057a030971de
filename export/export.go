// Package export renders contact regions as downloadable XLSX workbooks,
// for tenants who want their data out of Google entirely.
package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/digicard/backend/store"
	"github.com/digicard/backend/tenant"
)

const (
	contactsSheetName = "Contacts"
	combinedSheetName = "Combined_Contacts"

	// sourceHeader labels the extra column a combined export carries so
	// rows remain traceable to the team member who scanned them.
	sourceHeader = "Source Sheet"
)

// FromRows builds an XLSX workbook with a single sheet holding the rows.
func FromRows(sheetName string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("naming export sheet: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("addressing row %d: %w", i+1, err)
		}
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Contacts exports one tenant's contact region.
func Contacts(ctx context.Context, tab store.Tabular, ref tenant.Ref) ([]byte, error) {
	sheet, err := tenant.ContactsSheet(ctx, tab, ref)
	if err != nil {
		return nil, err
	}
	rows, err := tab.Read(ctx, store.RangeOn(sheet, "A:J"))
	if err != nil {
		return nil, fmt.Errorf("reading contacts: %w", err)
	}
	return FromRows(contactsSheetName, rows)
}

// Combined exports the admin's contacts plus every sub-tenant's, stacked
// under one header with a Source Sheet column identifying each row's
// origin. Sub-tenants whose sheets were never provisioned are skipped.
func Combined(ctx context.Context, tab store.Tabular, adminRef tenant.Ref, subIDs []string) ([]byte, error) {
	titles, err := tab.SheetTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}
	have := make(map[string]bool, len(titles))
	for _, t := range titles {
		have[t] = true
	}

	header := append(append([]string(nil), tenant.ContactHeaders...), sourceHeader)
	out := [][]string{header}

	appendRegion := func(ref tenant.Ref) error {
		sheet, err := tenant.ContactsSheet(ctx, tab, ref)
		if err != nil {
			return err
		}
		if !have[sheet] {
			return nil
		}
		rows, err := tab.Read(ctx, store.RangeOn(sheet, "A:J"))
		if err != nil {
			return fmt.Errorf("reading %s: %w", sheet, err)
		}
		for i, row := range rows {
			// Each region repeats the header row; keep only the shared one.
			if i == 0 {
				continue
			}
			padded := make([]string, len(tenant.ContactHeaders)+1)
			copy(padded, row)
			padded[len(tenant.ContactHeaders)] = sheet
			out = append(out, padded)
		}
		return nil
	}

	if err := appendRegion(adminRef); err != nil {
		return nil, err
	}
	for _, subID := range subIDs {
		if err := appendRegion(tenant.Sub(adminRef.PrimaryID, subID)); err != nil {
			return nil, err
		}
	}

	return FromRows(combinedSheetName, out)
}
