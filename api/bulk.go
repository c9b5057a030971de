package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/bulk"
)

// drainTimeout bounds one background drain run. A tenant-sized queue is a
// few hundred cards; anything still queued when this expires is picked up
// by the next sweep.
const drainTimeout = 30 * time.Minute

// imageUpload holds one card image read from a multipart form.
type imageUpload struct {
	data     []byte
	filename string
	mimeType string
}

// readImageFromMultipart extracts the card image from a multipart form.
func readImageFromMultipart(form *multipart.Reader) (*imageUpload, error) {
	var result imageUpload

	for {
		part, err := form.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading form data")
		}

		if part.FormName() == "file" {
			result.filename = part.FileName()
			result.mimeType = part.Header.Get("Content-Type")
			result.data, err = io.ReadAll(part)
			if err != nil {
				_ = part.Close()
				return nil, fmt.Errorf("error reading image file")
			}
		}
		if err := part.Close(); err != nil {
			slog.Warn("Error closing multipart part", "error", err)
		}
	}

	if len(result.data) == 0 {
		return nil, fmt.Errorf("no image file provided")
	}

	if result.mimeType == "" {
		result.mimeType = http.DetectContentType(result.data)
	}
	if result.filename == "" {
		result.filename = fmt.Sprintf("card_%d", time.Now().UnixNano())
	}

	return &result, nil
}

// handleStage uploads one card image and records it on the staging sheet
func (s *server) handleStage(e *core.RequestEvent) error {
	form, err := e.Request.MultipartReader()
	if err != nil {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid multipart form"})
	}
	upload, err := readImageFromMultipart(form)
	if err != nil {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}

	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return respondError(e, err)
	}
	svc, err := s.bulkService(e.Request.Context(), session)
	if err != nil {
		return respondError(e, err)
	}

	fileID, err := svc.Stage(e.Request.Context(), upload.filename, upload.mimeType, upload.data)
	if err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"file_id": fileID,
	})
}

// handleStagingCount returns how many images the caller has staged
func (s *server) handleStagingCount(e *core.RequestEvent) error {
	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return respondError(e, err)
	}
	svc, err := s.bulkService(e.Request.Context(), session)
	if err != nil {
		return respondError(e, err)
	}

	count, err := svc.CountStaged(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"count": count,
	})
}

// handleSubmit moves staged rows onto the queue and fires a background
// drain. Returns 202 Accepted; the drain reports its outcome via logs and
// the queue depth, not this response.
func (s *server) handleSubmit(e *core.RequestEvent) error {
	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return respondError(e, err)
	}
	svc, err := s.bulkService(e.Request.Context(), session)
	if err != nil {
		return respondError(e, err)
	}

	queued, err := svc.Submit(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	if queued == 0 {
		return e.JSON(http.StatusOK, map[string]interface{}{
			"status": "empty",
			"queued": 0,
		})
	}

	s.drainAsync(e.Auth)

	return e.JSON(http.StatusAccepted, map[string]interface{}{
		"status": "draining",
		"queued": queued,
	})
}

// drainAsync runs a drain for the caller's queue in the background. The
// request-scoped session cannot outlive the request, so the goroutine
// binds a fresh one against a background context.
func (s *server) drainAsync(auth *core.Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		session, err := s.session(ctx, auth)
		if err != nil {
			slog.Error("Drain aborted binding session", "tenant", auth.Id, "error", err)
			return
		}
		svc, err := s.bulkService(ctx, session)
		if err != nil {
			slog.Error("Drain aborted binding workbook", "tenant", auth.Id, "error", err)
			return
		}

		processed, err := svc.Drain(ctx, s.extract, s.notifier(ctx, session))
		if err != nil {
			slog.Error("Drain failed", "tenant", auth.Id, "processed", processed, "error", err)
		}
	}()
}

// handleCancel deletes staged images and clears the staging sheet
func (s *server) handleCancel(e *core.RequestEvent) error {
	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return respondError(e, err)
	}
	svc, err := s.bulkService(e.Request.Context(), session)
	if err != nil {
		return respondError(e, err)
	}

	canceled, err := svc.Cancel(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"canceled": canceled,
	})
}

// handleSaveContact appends one hand-entered contact to the caller's
// contact sheet, bypassing the image pipeline.
func (s *server) handleSaveContact(e *core.RequestEvent) error {
	var fields bulk.ContactFields
	if err := json.NewDecoder(e.Request.Body).Decode(&fields); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid contact payload"})
	}

	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return respondError(e, err)
	}
	svc, err := s.bulkService(e.Request.Context(), session)
	if err != nil {
		return respondError(e, err)
	}

	if err := svc.AppendContact(e.Request.Context(), fields, bulk.SourceManual); err != nil {
		return respondError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]interface{}{
		"status": "saved",
	})
}
