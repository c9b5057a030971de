package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/google"
	"github.com/digicard/backend/store"
)

// Tenant record fields the manager reads and writes.
const (
	FieldSpreadsheetID = "google_spreadsheet_id"
)

// SaveFunc persists a tenant record. Production wiring uses core.App.Save.
type SaveFunc func(record *core.Record) error

// Manager owns the contact workbook lifecycle for a tenant: lazy creation
// inside the hidden app folder, region provisioning, and recreation when
// the tenant has deleted the workbook from their Drive.
type Manager struct {
	obj        store.Objects
	newTabular func(spreadsheetID string) store.Tabular
	save       SaveFunc
}

// NewManager wires a Manager to the tenant's Drive and record persistence.
// newTabular binds a Tabular adapter to a workbook ID.
func NewManager(obj store.Objects, newTabular func(string) store.Tabular, save SaveFunc) *Manager {
	return &Manager{
		obj:        obj,
		newTabular: newTabular,
		save:       save,
	}
}

// Tabular returns a Tabular bound to the tenant's contact workbook,
// creating the workbook first if the tenant record has no ID yet.
func (m *Manager) Tabular(ctx context.Context, record *core.Record) (store.Tabular, error) {
	id := record.GetString(FieldSpreadsheetID)
	if id == "" {
		var err error
		id, err = m.CreateWorkbook(ctx, record)
		if err != nil {
			return nil, err
		}
	}
	return m.newTabular(id), nil
}

// CreateWorkbook creates a fresh contact workbook in the hidden app folder,
// writes the header row, and persists the new ID on the tenant record.
func (m *Manager) CreateWorkbook(ctx context.Context, record *core.Record) (string, error) {
	folderID, err := m.obj.EnsureFolder(ctx, InternalFolderName)
	if err != nil {
		return "", fmt.Errorf("ensuring app folder: %w", err)
	}

	id, err := m.obj.CreateWorkbook(ctx, folderID, google.FormatWorkbookTitle())
	if err != nil {
		return "", fmt.Errorf("creating contact workbook: %w", err)
	}

	tab := m.newTabular(id)
	if err := tab.Update(ctx, "A1", [][]interface{}{headerRow()}); err != nil {
		return "", fmt.Errorf("writing workbook headers: %w", err)
	}

	record.Set(FieldSpreadsheetID, id)
	if err := m.save(record); err != nil {
		return "", fmt.Errorf("persisting workbook id: %w", err)
	}

	slog.Info("Created contact workbook",
		"tenant", record.Id,
		"spreadsheet_id", id,
		"url", google.FormatSpreadsheetURL(id))
	return id, nil
}

// RecreateWorkbook replaces a workbook the tenant deleted from Drive.
// Called when a remote operation came back 404; the staged contact data
// referencing the old workbook is gone with it.
func (m *Manager) RecreateWorkbook(ctx context.Context, record *core.Record) (store.Tabular, error) {
	slog.Warn("Contact workbook missing, recreating",
		"tenant", record.Id,
		"old_spreadsheet_id", record.GetString(FieldSpreadsheetID))

	id, err := m.CreateWorkbook(ctx, record)
	if err != nil {
		return nil, err
	}
	return m.newTabular(id), nil
}

// EnsureRegions provisions the tenant's missing sheets in one batched call.
// A freshly created sub-tenant contact sheet also gets the header row.
// Idempotent; a workbook 404 escalates so the caller can recreate and retry.
func (m *Manager) EnsureRegions(ctx context.Context, tab store.Tabular, ref Ref) error {
	titles, err := tab.SheetTitles(ctx)
	if err != nil {
		return fmt.Errorf("listing sheets: %w", err)
	}
	have := make(map[string]bool, len(titles))
	for _, t := range titles {
		have[t] = true
	}

	regions := ref.Regions()
	var missing []string
	for _, name := range []string{regions.Contacts, regions.Staging, regions.Queue} {
		// An empty contacts region is the first sheet, which always exists.
		if name != "" && !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := tab.AddSheets(ctx, missing); err != nil {
		return fmt.Errorf("provisioning tenant sheets: %w", err)
	}
	slog.Info("Provisioned tenant sheets", "tenant", ref.PrimaryID, "sub", ref.SubID, "sheets", missing)

	for _, name := range missing {
		if name == regions.Contacts {
			if err := tab.Update(ctx, store.RangeOn(name, "A1"), [][]interface{}{headerRow()}); err != nil {
				return fmt.Errorf("writing headers for %s: %w", name, err)
			}
		}
	}
	return nil
}

func headerRow() []interface{} {
	row := make([]interface{}, len(ContactHeaders))
	for i, h := range ContactHeaders {
		row[i] = h
	}
	return row
}
