// Package api registers the DigiCard HTTP endpoints on the PocketBase
// router: the bulk scan pipeline, email template CRUD, and contact export.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/bulk"
	"github.com/digicard/backend/extract"
	"github.com/digicard/backend/google"
	"github.com/digicard/backend/mail"
	"github.com/digicard/backend/ratelimit"
	"github.com/digicard/backend/templates"
	"github.com/digicard/backend/tenant"
)

// server carries the pieces shared by every handler: the app, the
// process-wide rate limiter for Google calls, and the card extractor.
type server struct {
	app     *pocketbase.PocketBase
	limiter *ratelimit.RateLimiter
	extract bulk.ExtractFunc
}

// requireAuth wraps a handler function to require authentication
func requireAuth(handler func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Authentication required", nil)
		}
		return handler(e)
	}
}

// Global server instance, shared between the route handlers and the
// sweep scheduler so both go through one rate limiter.
var globalServer *server
var serverOnce sync.Once

func getServer(app *pocketbase.PocketBase) *server {
	serverOnce.Do(func() {
		globalServer = &server{
			app:     app,
			limiter: ratelimit.NewRateLimiter(nil),
			extract: buildExtractor(),
		}
	})
	return globalServer
}

// Register sets up the DigiCard API endpoints.
func Register(app *pocketbase.PocketBase, e *core.ServeEvent) error {
	s := getServer(app)

	// Bulk scan pipeline
	e.Router.POST("/api/bulk/stage", requireAuth(s.handleStage))
	e.Router.GET("/api/bulk/staging-count", requireAuth(s.handleStagingCount))
	e.Router.POST("/api/bulk/submit", requireAuth(s.handleSubmit))
	e.Router.POST("/api/bulk/cancel", requireAuth(s.handleCancel))

	// Manual single-contact save (no image, no queue)
	e.Router.POST("/api/contacts", requireAuth(s.handleSaveContact))

	// Contact export
	e.Router.GET("/api/contacts/export", requireAuth(s.handleExport))

	// Email templates
	e.Router.GET("/api/templates", requireAuth(s.handleListTemplates))
	e.Router.POST("/api/templates", requireAuth(s.handleAddTemplate))
	e.Router.PATCH("/api/templates/{id}", requireAuth(s.handleUpdateTemplate))
	e.Router.DELETE("/api/templates/{id}", requireAuth(s.handleDeleteTemplate))
	e.Router.POST("/api/templates/{id}/activate", requireAuth(s.handleActivateTemplate))
	e.Router.POST("/api/templates/deactivate", requireAuth(s.handleDeactivateTemplates))

	return nil
}

// errIntegrationDisabled is returned when the Google integration is
// turned off for the whole deployment.
var errIntegrationDisabled = errors.New("google integration is not enabled")

// session binds the authenticated caller to its workbook.
func (s *server) session(ctx context.Context, auth *core.Record) (*tenant.Session, error) {
	if !google.IsEnabled() {
		return nil, errIntegrationDisabled
	}
	return tenant.NewSession(ctx, s.app, auth, s.limiter)
}

// bulkService builds the per-request pipeline service, provisioning the
// caller's workbook and region sheets on first use.
func (s *server) bulkService(ctx context.Context, session *tenant.Session) (*bulk.Service, error) {
	return bulk.NewService(ctx, session.Manager, session.Objects, session.Owner, session.Ref)
}

// templateStore binds the template sheet of the caller's workbook.
func (s *server) templateStore(ctx context.Context, session *tenant.Session) (*templates.Store, error) {
	tab, err := session.Manager.Tabular(ctx, session.Owner)
	if err != nil {
		return nil, err
	}
	return templates.NewStore(tab), nil
}

// notifier builds the follow-up email hook for a drain run. Any failure
// here disables follow-ups for the run rather than blocking the drain.
func (s *server) notifier(ctx context.Context, session *tenant.Session) bulk.NotifyFunc {
	if !session.Owner.GetBool(tenant.FieldEmailEnabled) {
		return nil
	}
	sender, err := mail.NewSender(ctx, session.Tokens, session.Objects)
	if err != nil {
		slog.Warn("Gmail unavailable, draining without follow-ups", "tenant", session.Owner.Id, "error", err)
		return nil
	}
	tmpl, err := s.templateStore(ctx, session)
	if err != nil {
		slog.Warn("Template sheet unavailable, draining without follow-ups", "tenant", session.Owner.Id, "error", err)
		return nil
	}
	return mail.NewNotifier(sender, tmpl, session.Owner)
}

// buildExtractor wires OCR plus the vision classifier. Without an API key
// extraction is disabled and every drained card gets a blank contact row.
func buildExtractor() bulk.ExtractFunc {
	classifier, err := extract.NewClassifier(extract.NewProvider())
	if err != nil {
		slog.Warn("Card classification disabled", "error", err)
		return func(context.Context, []byte) (bulk.ContactFields, error) {
			return bulk.ContactFields{}, errors.New("card classification is not configured")
		}
	}
	return classifier.Func()
}

// respondError maps pipeline errors onto HTTP statuses. A revoked or
// missing Google link surfaces as 401 with a reauth hint so the dashboard
// can send the tenant back through the consent flow.
func respondError(e *core.RequestEvent, err error) error {
	if errors.Is(err, errIntegrationDisabled) {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
			"hint":  "Set GOOGLE_INTEGRATION_ENABLED=true and configure credentials",
		})
	}
	if errors.Is(err, google.ErrReauthRequired) {
		return e.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error":           "Google account link is missing or revoked",
			"reauth_required": true,
		})
	}
	if errors.Is(err, templates.ErrTemplateNotFound) {
		return e.JSON(http.StatusNotFound, map[string]interface{}{
			"error": err.Error(),
		})
	}
	if errors.Is(err, templates.ErrTemplateLimit) {
		return e.JSON(http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": err.Error(),
	})
}
