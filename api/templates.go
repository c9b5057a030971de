package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/templates"
)

// templatePayload is the request body for adding or updating a template.
type templatePayload struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

func decodeTemplatePayload(e *core.RequestEvent) (templatePayload, bool) {
	return decodePayloadFrom(e.Request.Body)
}

func decodePayloadFrom(r io.Reader) (templatePayload, bool) {
	var p templatePayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return p, false
	}
	return p, p.Subject != "" || p.Body != ""
}

// handleListTemplates returns all of the caller's templates
func (s *server) handleListTemplates(e *core.RequestEvent) error {
	store, err := s.boundTemplateStore(e)
	if err != nil {
		return respondError(e, err)
	}

	all, err := store.Fetch(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"templates": all,
		"limit":     templates.MaxTemplates,
	})
}

// handleAddTemplate creates a new (inactive) template
func (s *server) handleAddTemplate(e *core.RequestEvent) error {
	payload, ok := decodeTemplatePayload(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Template needs a subject or a body",
		})
	}

	store, err := s.boundTemplateStore(e)
	if err != nil {
		return respondError(e, err)
	}

	tmpl, err := store.Add(e.Request.Context(), payload.Subject, payload.Body, payload.Attachments)
	if err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, tmpl)
}

// handleUpdateTemplate replaces a template's content, keeping its active flag
func (s *server) handleUpdateTemplate(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	payload, ok := decodeTemplatePayload(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Template needs a subject or a body",
		})
	}

	store, err := s.boundTemplateStore(e)
	if err != nil {
		return respondError(e, err)
	}

	if err := store.UpdateContent(e.Request.Context(), id, payload.Subject, payload.Body, payload.Attachments); err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"status": "updated",
		"id":     id,
	})
}

// handleDeleteTemplate removes a template
func (s *server) handleDeleteTemplate(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")

	store, err := s.boundTemplateStore(e)
	if err != nil {
		return respondError(e, err)
	}

	if err := store.Delete(e.Request.Context(), id); err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"status": "deleted",
		"id":     id,
	})
}

// handleActivateTemplate makes one template the active follow-up,
// deactivating any other
func (s *server) handleActivateTemplate(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")

	store, err := s.boundTemplateStore(e)
	if err != nil {
		return respondError(e, err)
	}

	if err := store.SetActive(e.Request.Context(), id); err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"status": "activated",
		"id":     id,
	})
}

// handleDeactivateTemplates turns follow-up emails off entirely
func (s *server) handleDeactivateTemplates(e *core.RequestEvent) error {
	store, err := s.boundTemplateStore(e)
	if err != nil {
		return respondError(e, err)
	}

	if err := store.Deactivate(e.Request.Context()); err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"status": "deactivated",
	})
}

// boundTemplateStore resolves the caller's session and template sheet.
func (s *server) boundTemplateStore(e *core.RequestEvent) (*templates.Store, error) {
	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return nil, err
	}
	return s.templateStore(e.Request.Context(), session)
}
