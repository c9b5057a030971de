package mail

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/bulk"
	"github.com/digicard/backend/templates"
	"github.com/digicard/backend/tenant"
)

// NewNotifier builds the per-contact follow-up hook for a drain run: when
// the tenant has an active template and the scanned card carried an email
// address, the rendered template goes out through the sender. Missing
// template or missing address is a silent skip, not an error.
//
// owner is the workbook owner record; a tenant with the email feature
// turned off gets a nil hook, so the drain skips follow-ups entirely.
func NewNotifier(sender *Sender, store *templates.Store, owner *core.Record) bulk.NotifyFunc {
	if owner == nil || !owner.GetBool(tenant.FieldEmailEnabled) {
		return nil
	}

	return func(ctx context.Context, fields bulk.ContactFields) error {
		to := bulk.First(fields.Emails)
		if to == "" {
			return nil
		}

		tmpl, ok, err := store.Active(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		subject := Render(tmpl.Subject, fields)
		// Templates are authored as plain text; mail goes out as HTML.
		body := strings.ReplaceAll(Render(tmpl.Body, fields), "\n", "<br>")
		if err := sender.Send(ctx, to, subject, body, tmpl.Attachments); err != nil {
			return err
		}
		slog.Info("Sent follow-up email", "to", to, "template", tmpl.ID)
		return nil
	}
}
