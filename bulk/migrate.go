package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digicard/backend/store"
	"github.com/digicard/backend/tenant"
)

// EnsureCurrentSchema upgrades a contact sheet created before the category
// column existed. Looks at the header row; when the category header is
// absent, inserts the column at its fixed position (inheriting formatting
// from the column before it) and labels it, as one batched call so a crash
// cannot leave an unlabeled column.
//
// Callers treat a migration failure as non-fatal: the append that follows
// still goes out, at worst against the old column layout.
func EnsureCurrentSchema(ctx context.Context, tab store.Tabular, sheetTitle string) error {
	header, err := tab.Read(ctx, store.RangeOn(sheetTitle, "A1:Z1"))
	if err != nil {
		return fmt.Errorf("reading header row: %w", err)
	}

	if len(header) > 0 {
		for _, cell := range header[0] {
			if cell == tenant.CategoryHeader {
				return nil
			}
		}
	}

	if err := tab.InsertColumnWithHeader(ctx, sheetTitle, tenant.CategoryColumnIndex, tenant.CategoryHeader); err != nil {
		return fmt.Errorf("inserting category column: %w", err)
	}

	slog.Info("Migrated contact sheet schema", "sheet", sheetTitle, "column", tenant.CategoryHeader)
	return nil
}
