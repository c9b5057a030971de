// Package mail renders follow-up email templates and sends them through the
// tenant's Gmail account.
package mail

import (
	"regexp"
	"strings"

	"github.com/digicard/backend/bulk"
)

// Template placeholders look like {{name}} (case-insensitive, optional
// inner whitespace). Conditional blocks {{% if var %}}...{{% endif %}} are
// dropped entirely when the variable is empty, so templates can carry
// optional lines like "Great talking about {{% if company %}}{{company}}{{% endif %}}".
var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)
	conditionalRe = regexp.MustCompile(`(?is)\{\{%\s*if\s+([a-zA-Z_]+)\s*%\}\}(.*?)\{\{%\s*endif\s*%\}\}`)
)

// Render substitutes contact fields into a template string.
func Render(tmpl string, fields bulk.ContactFields) string {
	vars := templateVars(fields)

	out := conditionalRe.ReplaceAllStringFunc(tmpl, func(block string) string {
		m := conditionalRe.FindStringSubmatch(block)
		if vars[strings.ToLower(m[1])] == "" {
			return ""
		}
		return m[2]
	})

	return placeholderRe.ReplaceAllStringFunc(out, func(ph string) string {
		m := placeholderRe.FindStringSubmatch(ph)
		if val, ok := vars[strings.ToLower(m[1])]; ok {
			return val
		}
		// Unknown placeholders stay visible so the tenant notices the typo.
		return ph
	})
}

// templateVars flattens contact fields into the placeholder names templates
// may use, including the aliases the dashboard documents.
func templateVars(f bulk.ContactFields) map[string]string {
	name := bulk.First(f.Names)
	first, last := splitName(name)

	vars := map[string]string{
		"name":         name,
		"full_name":    name,
		"first_name":   first,
		"last_name":    last,
		"company":      bulk.First(f.Orgs),
		"organization": bulk.First(f.Orgs),
		"org":          bulk.First(f.Orgs),
		"title":        bulk.First(f.Titles),
		"job_title":    bulk.First(f.Titles),
		"phone":        bulk.First(f.Phones),
		"tel":          bulk.First(f.Phones),
		"email":        bulk.First(f.Emails),
		"website":      bulk.First(f.Websites),
		"url":          bulk.First(f.Websites),
		"address":      bulk.First(f.Addresses),
		"adr":          bulk.First(f.Addresses),
		"category":     bulk.First(f.Categories),
		"notes":        strings.Join(f.Notes, ", "),
	}
	return vars
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[len(parts)-1]
	}
}
