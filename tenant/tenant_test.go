package tenant

import (
	"context"
	"testing"

	"github.com/digicard/backend/store"
)

func TestRegions_Primary(t *testing.T) {
	r := Primary("tenant1").Regions()

	if r.Contacts != "" {
		t.Errorf("primary contacts region = %q, want positional first sheet", r.Contacts)
	}
	if r.Staging != "Not_Submitted_Bulk" {
		t.Errorf("staging = %q, want Not_Submitted_Bulk", r.Staging)
	}
	if r.Queue != "Bulk_Submitted" {
		t.Errorf("queue = %q, want Bulk_Submitted", r.Queue)
	}
}

func TestRegions_Sub(t *testing.T) {
	r := Sub("admin1", "abc123").Regions()

	if r.Contacts != "Team_abc123" {
		t.Errorf("contacts = %q, want Team_abc123", r.Contacts)
	}
	if r.Staging != "Team_abc123_NotSubmitted" {
		t.Errorf("staging = %q, want Team_abc123_NotSubmitted", r.Staging)
	}
	if r.Queue != "Team_abc123_BulkSubmitted" {
		t.Errorf("queue = %q, want Team_abc123_BulkSubmitted", r.Queue)
	}
}

// Distinct refs sharing a workbook must never resolve to overlapping sheets.
func TestRegions_NoCollisions(t *testing.T) {
	refs := []Ref{
		Primary("admin1"),
		Sub("admin1", "sub1"),
		Sub("admin1", "sub2"),
		Sub("admin1", "sub1x"),
	}

	seen := make(map[string]Ref)
	for _, ref := range refs {
		r := ref.Regions()
		for _, name := range []string{r.Contacts, r.Staging, r.Queue} {
			if name == "" {
				continue
			}
			if prev, ok := seen[name]; ok {
				t.Errorf("sheet %q claimed by both %+v and %+v", name, prev, ref)
			}
			seen[name] = ref
		}
	}
}

func TestContactsSheet_PrimaryResolvesFirstSheet(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	if err := m.AddSheets(ctx, []string{"Not_Submitted_Bulk", "Bulk_Submitted"}); err != nil {
		t.Fatalf("AddSheets: %v", err)
	}

	// Primary tenants can rename the first sheet freely.
	name, err := ContactsSheet(ctx, m, Primary("tenant1"))
	if err != nil {
		t.Fatalf("ContactsSheet: %v", err)
	}
	if name != "Sheet1" {
		t.Errorf("contacts sheet = %q, want first sheet Sheet1", name)
	}
}

func TestContactsSheet_SubUsesNamedSheet(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	name, err := ContactsSheet(ctx, m, Sub("admin1", "sub1"))
	if err != nil {
		t.Fatalf("ContactsSheet: %v", err)
	}
	if name != "Team_sub1" {
		t.Errorf("contacts sheet = %q, want Team_sub1", name)
	}
}
