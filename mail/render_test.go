package mail

import (
	"strings"
	"testing"

	"github.com/digicard/backend/bulk"
)

func sampleFields() bulk.ContactFields {
	return bulk.ContactFields{
		Names:      []string{"Jane Q. Doe"},
		Orgs:       []string{"Acme Corp"},
		Titles:     []string{"CTO"},
		Phones:     []string{"+1 555 0100"},
		Emails:     []string{"jane@acme.test"},
		Websites:   []string{"https://acme.test"},
		Addresses:  []string{"1 Main St"},
		Categories: []string{"Manufacturing"},
		Notes:      []string{"met at expo"},
	}
}

func TestRender_BasicPlaceholders(t *testing.T) {
	got := Render("Hi {{name}}, great meeting you at {{company}}!", sampleFields())
	want := "Hi Jane Q. Doe, great meeting you at Acme Corp!"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRender_CaseAndWhitespaceInsensitive(t *testing.T) {
	got := Render("Hi {{ First_Name }}, from {{ORG}}.", sampleFields())
	want := "Hi Jane, from Acme Corp."
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRender_NameParts(t *testing.T) {
	got := Render("{{first_name}}|{{last_name}}|{{full_name}}", sampleFields())
	if got != "Jane|Doe|Jane Q. Doe" {
		t.Errorf("Render = %q", got)
	}
}

func TestRender_Aliases(t *testing.T) {
	f := sampleFields()
	pairs := [][2]string{
		{"{{phone}}", "+1 555 0100"},
		{"{{tel}}", "+1 555 0100"},
		{"{{organization}}", "Acme Corp"},
		{"{{job_title}}", "CTO"},
		{"{{website}}", "https://acme.test"},
		{"{{url}}", "https://acme.test"},
		{"{{adr}}", "1 Main St"},
		{"{{category}}", "Manufacturing"},
	}
	for _, p := range pairs {
		if got := Render(p[0], f); got != p[1] {
			t.Errorf("Render(%q) = %q, want %q", p[0], got, p[1])
		}
	}
}

func TestRender_UnknownPlaceholderKept(t *testing.T) {
	got := Render("Hello {{nmae}}!", sampleFields())
	if got != "Hello {{nmae}}!" {
		t.Errorf("typo placeholder should survive, got %q", got)
	}
}

func TestRender_ConditionalKeptWhenSet(t *testing.T) {
	tmpl := "Hi {{name}}.{{% if company %}} Say hi to everyone at {{company}}.{{% endif %}}"
	got := Render(tmpl, sampleFields())
	want := "Hi Jane Q. Doe. Say hi to everyone at Acme Corp."
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRender_ConditionalDroppedWhenEmpty(t *testing.T) {
	f := bulk.ContactFields{Names: []string{"Bob"}}
	tmpl := "Hi {{name}}.{{% if company %}} Say hi to everyone at {{company}}.{{% endif %}} Bye."
	got := Render(tmpl, f)
	want := "Hi Bob. Bye."
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRender_ConditionalSpansLines(t *testing.T) {
	f := bulk.ContactFields{Names: []string{"Bob"}}
	tmpl := "Hi {{name}},\n{{% if notes %}}PS:\n{{notes}}\n{{% endif %}}Cheers"
	got := Render(tmpl, f)
	if strings.Contains(got, "PS:") {
		t.Errorf("empty multiline conditional survived: %q", got)
	}
}

func TestRender_EmptyFieldsRenderEmpty(t *testing.T) {
	got := Render("Phone: {{phone}}", bulk.ContactFields{})
	if got != "Phone: " {
		t.Errorf("Render = %q", got)
	}
}
