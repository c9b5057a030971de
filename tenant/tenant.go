// Package tenant maps tenants onto their sheet regions inside a contact
// workbook and manages the workbook lifecycle (lazy creation, recreation
// after a tenant deletes it, region provisioning).
//
// A primary tenant owns the workbook: its contacts live on the first sheet,
// whatever the tenant renamed it to, and its bulk regions are fixed-name
// sheets. A sub-tenant (team member under an enterprise admin) shares the
// admin's workbook and gets a namespaced trio of sheets keyed by its ID.
package tenant

import (
	"context"
	"fmt"

	"github.com/digicard/backend/store"
)

const (
	// InternalFolderName is the hidden Drive folder holding app-managed data.
	InternalFolderName = ".Digital_Business_Card_Scanner_Internal_Data"

	// TempImagesFolderName holds staged card images awaiting bulk processing.
	TempImagesFolderName = "DigiCard_Bulk_Temp_Images"

	stagingSheet = "Not_Submitted_Bulk"
	queueSheet   = "Bulk_Submitted"

	subSheetPrefix = "Team"
)

// ContactHeaders is the current contact sheet header row. The category
// column was added after launch; bulk.Migrator upgrades older workbooks.
var ContactHeaders = []string{
	"Contact Name",
	"Business Name",
	"Contact Numbers",
	"Job Title",
	"Emails",
	"Websites",
	"Address",
	"Import Source",
	"Business Category",
	"AI Notes",
}

const (
	// CategoryHeader is the header label of the column added in the
	// current schema revision.
	CategoryHeader = "Business Category"

	// CategoryColumnIndex is its zero-based position.
	CategoryColumnIndex = 8
)

// Ref identifies a tenant. SubID is empty for primary tenants.
type Ref struct {
	PrimaryID string
	SubID     string
}

// Primary returns a Ref for a workbook-owning tenant.
func Primary(id string) Ref {
	return Ref{PrimaryID: id}
}

// Sub returns a Ref for a sub-tenant under the given primary tenant.
func Sub(primaryID, subID string) Ref {
	return Ref{PrimaryID: primaryID, SubID: subID}
}

// IsSub reports whether the ref names a sub-tenant.
func (r Ref) IsSub() bool {
	return r.SubID != ""
}

// Regions are the three sheet titles a tenant operates on. An empty
// Contacts title means "the first sheet of the workbook", which is
// resolved positionally because primary tenants are free to rename it.
type Regions struct {
	Contacts string
	Staging  string
	Queue    string
}

// Regions resolves the tenant's sheet names. The mapping is pure: two
// distinct refs can never resolve to overlapping regions.
func (r Ref) Regions() Regions {
	if !r.IsSub() {
		return Regions{
			Contacts: "",
			Staging:  stagingSheet,
			Queue:    queueSheet,
		}
	}
	base := fmt.Sprintf("%s_%s", subSheetPrefix, r.SubID)
	return Regions{
		Contacts: base,
		Staging:  base + "_NotSubmitted",
		Queue:    base + "_BulkSubmitted",
	}
}

// ContactsSheet resolves the tenant's contact sheet to a concrete title,
// looking up the workbook's first sheet when the region is positional.
func ContactsSheet(ctx context.Context, tab store.Tabular, ref Ref) (string, error) {
	name := ref.Regions().Contacts
	if name != "" {
		return name, nil
	}
	titles, err := tab.SheetTitles(ctx)
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	return titles[0], nil
}
