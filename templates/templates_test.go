package templates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/digicard/backend/store"
)

func newTestStore(t *testing.T) (*Store, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return NewStore(m), m
}

func TestStore_EnsuresSheetOnFirstUse(t *testing.T) {
	ctx := context.Background()
	s, m := newTestStore(t)

	all, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("fresh store has %d templates, want 0", len(all))
	}

	vals := m.Values(SheetName)
	if len(vals) == 0 || vals[0][0] != "ID" || vals[0][3] != "Is Active" {
		t.Errorf("template sheet headers = %v", vals)
	}
}

func TestStore_AddAndFetch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	added, err := s.Add(ctx, "Nice meeting you", "Hi {{name}},\nthanks!", []string{"file-1"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(added.ID) != 8 {
		t.Errorf("template ID %q, want 8 chars", added.ID)
	}
	if added.Active {
		t.Error("new template should start inactive")
	}

	all, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Fetch = %d templates, want 1", len(all))
	}
	got := all[0]
	if got.ID != added.ID || got.Subject != "Nice meeting you" || got.Body != "Hi {{name}},\nthanks!" {
		t.Errorf("round-tripped template = %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0] != "file-1" {
		t.Errorf("attachments = %v, want [file-1]", got.Attachments)
	}
}

func TestStore_AddEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for i := 0; i < MaxTemplates; i++ {
		if _, err := s.Add(ctx, fmt.Sprintf("Subject %d", i), "body", nil); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	if _, err := s.Add(ctx, "one too many", "body", nil); !errors.Is(err, ErrTemplateLimit) {
		t.Errorf("expected ErrTemplateLimit, got %v", err)
	}
}

func TestStore_SetActiveIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Add(ctx, "A", "body a", nil)
	if _, err := s.Add(ctx, "B", "body b", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	c, _ := s.Add(ctx, "C", "body c", nil)

	if err := s.SetActive(ctx, a.ID); err != nil {
		t.Fatalf("SetActive(a): %v", err)
	}
	if err := s.SetActive(ctx, c.ID); err != nil {
		t.Fatalf("SetActive(c): %v", err)
	}

	all, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	for _, tmpl := range all {
		wantActive := tmpl.ID == c.ID
		if tmpl.Active != wantActive {
			t.Errorf("template %s active = %v, want %v", tmpl.ID, tmpl.Active, wantActive)
		}
	}

	active, ok, err := s.Active(ctx)
	if err != nil || !ok {
		t.Fatalf("Active: ok=%v err=%v", ok, err)
	}
	if active.ID != c.ID {
		t.Errorf("active = %s, want %s", active.ID, c.ID)
	}
}

func TestStore_SetActiveUnknownID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.Add(ctx, "A", "body", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.SetActive(ctx, "nope1234"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestStore_Deactivate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Add(ctx, "A", "body", nil)
	if err := s.SetActive(ctx, a.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := s.Deactivate(ctx); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	if _, ok, _ := s.Active(ctx); ok {
		t.Error("expected no active template after Deactivate")
	}
}

func TestStore_UpdateContent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Add(ctx, "Old subject", "old body", nil)
	if err := s.SetActive(ctx, a.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	if err := s.UpdateContent(ctx, a.ID, "New subject", "new body", []string{"file-9"}); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "New subject" || got.Body != "new body" {
		t.Errorf("content not updated: %+v", got)
	}
	if !got.Active {
		t.Error("UpdateContent must not clear the active flag")
	}
	if len(got.Attachments) != 1 || got.Attachments[0] != "file-9" {
		t.Errorf("attachments = %v, want [file-9]", got.Attachments)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, _ := s.Add(ctx, "A", "body a", nil)
	b, _ := s.Add(ctx, "B", "body b", nil)

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(all) != 1 || all[0].ID != b.ID {
		t.Errorf("after delete, templates = %+v", all)
	}

	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("deleting twice should fail, got %v", err)
	}
}
