// Package templates manages a tenant's follow-up email templates, stored on
// a dedicated sheet of their contact workbook so the tenant can see and hand
// edit them like everything else the app writes.
package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/digicard/backend/store"
)

const (
	// SheetName is the workbook sheet holding the templates.
	SheetName = "Email_Templates"

	// MaxTemplates caps how many templates a tenant can keep.
	MaxTemplates = 5
)

var headers = []string{"ID", "Subject", "Body", "Is Active", "Attachments"}

// ErrTemplateLimit is returned by Add when the tenant already has
// MaxTemplates templates.
var ErrTemplateLimit = fmt.Errorf("template limit of %d reached", MaxTemplates)

// ErrTemplateNotFound is returned when no template matches the given ID.
var ErrTemplateNotFound = errors.New("template not found")

// Template is one row of the template sheet. Attachments are Drive file IDs.
type Template struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Active      bool     `json:"is_active"`
	Attachments []string `json:"attachments"`
}

// Store reads and writes the template sheet of one workbook.
type Store struct {
	tab     store.Tabular
	ensured bool
}

// NewStore binds a template store to a tenant's workbook.
func NewStore(tab store.Tabular) *Store {
	return &Store{tab: tab}
}

// ensure provisions the template sheet with its header row on first use.
func (s *Store) ensure(ctx context.Context) error {
	if s.ensured {
		return nil
	}
	titles, err := s.tab.SheetTitles(ctx)
	if err != nil {
		return fmt.Errorf("listing sheets: %w", err)
	}
	for _, t := range titles {
		if t == SheetName {
			s.ensured = true
			return nil
		}
	}

	if err := s.tab.AddSheets(ctx, []string{SheetName}); err != nil {
		return fmt.Errorf("creating template sheet: %w", err)
	}
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := s.tab.Update(ctx, store.RangeOn(SheetName, "A1"), [][]interface{}{row}); err != nil {
		return fmt.Errorf("writing template headers: %w", err)
	}
	s.ensured = true
	return nil
}

// Fetch returns all templates in sheet order.
func (s *Store) Fetch(ctx context.Context) ([]Template, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := s.tab.Read(ctx, store.RangeOn(SheetName, "A2:E"))
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}

	templates := make([]Template, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		templates = append(templates, decodeRow(row))
	}
	return templates, nil
}

// Get returns the template with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Template, error) {
	all, err := s.Fetch(ctx)
	if err != nil {
		return Template{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, ErrTemplateNotFound
}

// Active returns the currently active template, if any.
func (s *Store) Active(ctx context.Context) (Template, bool, error) {
	all, err := s.Fetch(ctx)
	if err != nil {
		return Template{}, false, err
	}
	for _, t := range all {
		if t.Active {
			return t, true, nil
		}
	}
	return Template{}, false, nil
}

// Add appends a new inactive template and returns it. The short random ID
// keeps the sheet readable for tenants who edit it by hand.
func (s *Store) Add(ctx context.Context, subject, body string, attachments []string) (Template, error) {
	existing, err := s.Fetch(ctx)
	if err != nil {
		return Template{}, err
	}
	if len(existing) >= MaxTemplates {
		return Template{}, ErrTemplateLimit
	}

	t := Template{
		ID:          uuid.NewString()[:8],
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	}
	if err := s.tab.AppendRaw(ctx, store.RangeOn(SheetName, ""), [][]interface{}{encodeRow(t)}); err != nil {
		return Template{}, fmt.Errorf("appending template: %w", err)
	}
	return t, nil
}

// UpdateContent replaces a template's subject, body and attachments,
// leaving its active flag alone.
func (s *Store) UpdateContent(ctx context.Context, id, subject, body string, attachments []string) error {
	row, _, err := s.findRow(ctx, id)
	if err != nil {
		return err
	}

	rng := store.RangeOn(SheetName, fmt.Sprintf("B%d:C%d", row, row))
	if err := s.tab.Update(ctx, rng, [][]interface{}{{subject, body}}); err != nil {
		return fmt.Errorf("updating template %s: %w", id, err)
	}
	attachRng := store.RangeOn(SheetName, fmt.Sprintf("E%d", row))
	if err := s.tab.Update(ctx, attachRng, [][]interface{}{{strings.Join(attachments, ", ")}}); err != nil {
		return fmt.Errorf("updating template %s attachments: %w", id, err)
	}
	return nil
}

// SetActive marks one template active and clears the flag on every other
// row in a single batched write, so a crash cannot leave two active.
func (s *Store) SetActive(ctx context.Context, id string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	rows, err := s.tab.Read(ctx, store.RangeOn(SheetName, "A2:E"))
	if err != nil {
		return fmt.Errorf("reading templates: %w", err)
	}

	data := make(map[string][][]interface{})
	found := false
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		flag := "FALSE"
		if row[0] == id {
			flag = "TRUE"
			found = true
		}
		rng := store.RangeOn(SheetName, fmt.Sprintf("D%d", i+2))
		data[rng] = [][]interface{}{{flag}}
	}
	if !found {
		return ErrTemplateNotFound
	}
	return s.tab.BatchSetValues(ctx, data)
}

// Deactivate clears the active flag on every template.
func (s *Store) Deactivate(ctx context.Context) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	rows, err := s.tab.Read(ctx, store.RangeOn(SheetName, "A2:E"))
	if err != nil {
		return fmt.Errorf("reading templates: %w", err)
	}

	data := make(map[string][][]interface{})
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		rng := store.RangeOn(SheetName, fmt.Sprintf("D%d", i+2))
		data[rng] = [][]interface{}{{"FALSE"}}
	}
	if len(data) == 0 {
		return nil
	}
	return s.tab.BatchSetValues(ctx, data)
}

// Delete removes a template by rewriting the data region without it. The
// values API cannot delete arbitrary rows, so the region is cleared and
// rewritten compacted.
func (s *Store) Delete(ctx context.Context, id string) error {
	all, err := s.Fetch(ctx)
	if err != nil {
		return err
	}

	kept := make([][]interface{}, 0, len(all))
	found := false
	for _, t := range all {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, encodeRow(t))
	}
	if !found {
		return ErrTemplateNotFound
	}

	if err := s.tab.Clear(ctx, store.RangeOn(SheetName, "A2:E")); err != nil {
		return fmt.Errorf("clearing template rows: %w", err)
	}
	if len(kept) == 0 {
		return nil
	}
	if err := s.tab.Update(ctx, store.RangeOn(SheetName, "A2"), kept); err != nil {
		return fmt.Errorf("rewriting templates: %w", err)
	}
	return nil
}

func (s *Store) findRow(ctx context.Context, id string) (int, Template, error) {
	if err := s.ensure(ctx); err != nil {
		return 0, Template{}, err
	}
	rows, err := s.tab.Read(ctx, store.RangeOn(SheetName, "A2:E"))
	if err != nil {
		return 0, Template{}, fmt.Errorf("reading templates: %w", err)
	}
	for i, row := range rows {
		if len(row) > 0 && row[0] == id {
			return i + 2, decodeRow(row), nil
		}
	}
	return 0, Template{}, ErrTemplateNotFound
}

func encodeRow(t Template) []interface{} {
	flag := "FALSE"
	if t.Active {
		flag = "TRUE"
	}
	return []interface{}{t.ID, t.Subject, t.Body, flag, strings.Join(t.Attachments, ", ")}
}

func decodeRow(row []string) Template {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	t := Template{
		ID:      get(0),
		Subject: get(1),
		Body:    get(2),
		Active:  strings.EqualFold(get(3), "true"),
	}
	if raw := get(4); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				t.Attachments = append(t.Attachments, p)
			}
		}
	}
	return t
}
