// Package bulk implements the card-scanning bulk pipeline: images staged in
// Drive, a queue sheet drained one row at a time into the tenant's contact
// sheet, with schema migration and formula-safe row encoding on the way in.
package bulk

import (
	"strings"
)

// Import source labels written into the contact sheet's Import Source column.
const (
	SourceBulk   = "Bulk Import"
	SourceManual = "General"
)

// ContactFields holds the multi-value fields extracted from one business
// card. JSON tags match the classifier's output format.
type ContactFields struct {
	Names      []string `json:"fn"`
	Orgs       []string `json:"org"`
	Titles     []string `json:"title"`
	Phones     []string `json:"tel"`
	Emails     []string `json:"email"`
	Websites   []string `json:"url"`
	Addresses  []string `json:"adr"`
	Categories []string `json:"cat"`
	Notes      []string `json:"notes"`
}

// First returns the first value of a multi-value field, or "".
func First(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// EncodeRow flattens contact fields into the 10-column contact sheet row.
// Multi-value fields are joined with ", "; every cell goes through ForceText
// so the row is safe to write with user-entered parsing.
func EncodeRow(f ContactFields, source string) []interface{} {
	cells := []string{
		strings.Join(f.Names, ", "),
		strings.Join(f.Orgs, ", "),
		strings.Join(f.Phones, ", "),
		strings.Join(f.Titles, ", "),
		strings.Join(f.Emails, ", "),
		strings.Join(f.Websites, ", "),
		strings.Join(f.Addresses, ", "),
		source,
		strings.Join(f.Categories, ", "),
		strings.Join(f.Notes, ", "),
	}

	row := make([]interface{}, len(cells))
	for i, cell := range cells {
		row[i] = ForceText(cell)
	}
	return row
}

// ForceText prefixes an apostrophe when the value would otherwise be parsed
// as a formula or number by the sheet. Card text is attacker-controlled, so
// a scanned "=IMPORTXML(...)" must land as literal text, and "+1 555..."
// phone numbers must not collapse into arithmetic.
func ForceText(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '+', '=', '-', '@':
		return "'" + s
	}
	return s
}
