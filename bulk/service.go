package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/google"
	"github.com/digicard/backend/store"
	"github.com/digicard/backend/tenant"
)

// statusPending is the second column of every staging and queue row. The
// dashboard shows it verbatim; the pipeline only cares about the file ID.
const statusPending = "Pending Upload"

// ExtractFunc turns a card image into contact fields.
type ExtractFunc func(ctx context.Context, image []byte) (ContactFields, error)

// NotifyFunc sends the post-scan follow-up email for one contact.
type NotifyFunc func(ctx context.Context, fields ContactFields) error

// Service runs the bulk pipeline for one tenant against their contact
// workbook. A Service is built per request or per drain run; it is not
// safe for concurrent use.
type Service struct {
	mgr      *tenant.Manager
	obj      store.Objects
	tab      store.Tabular
	record   *core.Record
	ref      tenant.Ref
	migrated bool
}

// NewService binds the pipeline to a tenant's workbook, creating the
// workbook and missing region sheets as needed. record is the workbook
// owner (the admin record when ref is a sub-tenant).
func NewService(ctx context.Context, mgr *tenant.Manager, obj store.Objects, record *core.Record, ref tenant.Ref) (*Service, error) {
	tab, err := mgr.Tabular(ctx, record)
	if err != nil {
		return nil, err
	}
	s := &Service{mgr: mgr, obj: obj, tab: tab, record: record, ref: ref}
	if err := s.ensureRegions(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureRegions(ctx context.Context) error {
	err := s.mgr.EnsureRegions(ctx, s.tab, s.ref)
	if err == nil || !google.IsNotFound(err) {
		return err
	}
	if err := s.recreate(ctx); err != nil {
		return err
	}
	return nil
}

// recreate replaces a workbook the tenant deleted from Drive and
// re-provisions the tenant's region sheets on the new one.
func (s *Service) recreate(ctx context.Context) error {
	tab, err := s.mgr.RecreateWorkbook(ctx, s.record)
	if err != nil {
		return err
	}
	s.tab = tab
	s.migrated = true // fresh workbook carries the current schema
	return s.mgr.EnsureRegions(ctx, s.tab, s.ref)
}

// Stage uploads a card image to the temp folder and records it on the
// staging sheet. Returns the image's file ID.
func (s *Service) Stage(ctx context.Context, filename, mimeType string, image []byte) (string, error) {
	folderID, err := s.obj.EnsureFolder(ctx, tenant.TempImagesFolderName)
	if err != nil {
		return "", fmt.Errorf("ensuring temp image folder: %w", err)
	}

	fileID, err := s.obj.Upload(ctx, folderID, filename, mimeType, image)
	if err != nil {
		return "", fmt.Errorf("uploading card image: %w", err)
	}

	staging := s.ref.Regions().Staging
	row := [][]interface{}{{fileID, statusPending}}
	if err := s.tab.AppendRaw(ctx, store.RangeOn(staging, ""), row); err != nil {
		// The image is orphaned if we cannot record it; clean it up.
		if derr := s.obj.Delete(ctx, fileID); derr != nil {
			slog.Warn("Failed to delete orphaned staged image", "file_id", fileID, "error", derr)
		}
		return "", fmt.Errorf("recording staged image: %w", err)
	}
	return fileID, nil
}

// CountStaged returns the number of images currently staged.
func (s *Service) CountStaged(ctx context.Context) (int, error) {
	rows, err := s.tab.Read(ctx, store.RangeOn(s.ref.Regions().Staging, "A:B"))
	if err != nil {
		return 0, fmt.Errorf("reading staging sheet: %w", err)
	}
	return len(rows), nil
}

// Submit moves all staged rows onto the queue sheet and clears staging.
// Returns the number of rows queued. The caller is expected to fire a
// drain afterwards.
func (s *Service) Submit(ctx context.Context) (int, error) {
	regions := s.ref.Regions()
	rows, err := s.tab.Read(ctx, store.RangeOn(regions.Staging, "A:B"))
	if err != nil {
		return 0, fmt.Errorf("reading staging sheet: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	queued := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		queued = append(queued, []interface{}{row[0], statusPending})
	}
	if len(queued) == 0 {
		return 0, nil
	}

	if err := s.tab.AppendRaw(ctx, store.RangeOn(regions.Queue, ""), queued); err != nil {
		return 0, fmt.Errorf("queueing staged rows: %w", err)
	}
	if err := s.tab.Clear(ctx, store.RangeOn(regions.Staging, "A:Z")); err != nil {
		return 0, fmt.Errorf("clearing staging sheet: %w", err)
	}
	return len(queued), nil
}

// Cancel deletes all staged images and clears the staging sheet. Image
// deletions are best effort; the staging rows go away regardless.
func (s *Service) Cancel(ctx context.Context) (int, error) {
	staging := s.ref.Regions().Staging
	rows, err := s.tab.Read(ctx, store.RangeOn(staging, "A:B"))
	if err != nil {
		return 0, fmt.Errorf("reading staging sheet: %w", err)
	}

	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if err := s.obj.Delete(ctx, row[0]); err != nil {
			slog.Warn("Failed to delete canceled image", "file_id", row[0], "error", err)
		}
	}

	if err := s.tab.Clear(ctx, store.RangeOn(staging, "A:Z")); err != nil {
		return 0, fmt.Errorf("clearing staging sheet: %w", err)
	}
	return len(rows), nil
}

// Drain processes the queue head-first until it is empty. Per-row failure
// handling:
//
//   - image download fails: the row is dropped and the drain continues
//   - extraction fails: a blank contact row is written so the scan is not
//     silently lost
//   - follow-up email or image cleanup fails: logged and ignored
//   - contact append fails (after workbook recreation retry): the run
//     aborts with the row still queued, so a later drain retries it
//
// Credential failures abort immediately. At most one drain runs per tenant;
// a concurrent call returns (0, nil).
func (s *Service) Drain(ctx context.Context, extract ExtractFunc, notify NotifyFunc) (int, error) {
	key := drainKey(s.ref)
	if !tryAcquireDrain(key) {
		slog.Info("Drain already running", "tenant", s.ref.PrimaryID, "sub", s.ref.SubID)
		return 0, nil
	}
	defer releaseDrain(key)

	regions := s.ref.Regions()
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		head, err := s.tab.Read(ctx, store.RangeOn(regions.Queue, "A1:B1"))
		if err != nil {
			return processed, fmt.Errorf("reading queue head: %w", err)
		}
		if len(head) == 0 || len(head[0]) == 0 || head[0][0] == "" {
			break
		}
		fileID := head[0][0]

		image, err := s.obj.Download(ctx, fileID)
		if err != nil {
			if google.IsAuthError(err) {
				return processed, err
			}
			slog.Warn("Failed to download queued image, dropping row", "file_id", fileID, "error", err)
			if derr := s.tab.DeleteTopRow(ctx, regions.Queue); derr != nil {
				slog.Warn("Failed to drop queue row, stopping drain", "file_id", fileID, "error", derr)
				return processed, nil
			}
			continue
		}

		fields, err := extract(ctx, image)
		if err != nil {
			slog.Warn("Extraction failed, writing blank contact", "file_id", fileID, "error", err)
			fields = ContactFields{}
		}

		if err := s.AppendContact(ctx, fields, SourceBulk); err != nil {
			return processed, fmt.Errorf("appending contact for %s: %w", fileID, err)
		}

		if notify != nil {
			if err := notify(ctx, fields); err != nil {
				slog.Warn("Follow-up email failed", "file_id", fileID, "error", err)
			}
		}

		if err := s.obj.Delete(ctx, fileID); err != nil {
			slog.Warn("Failed to delete processed image", "file_id", fileID, "error", err)
		}

		// If this fails the contact is written but the row stays queued,
		// so a retry would duplicate it. Stop instead of spinning.
		if err := s.tab.DeleteTopRow(ctx, regions.Queue); err != nil {
			slog.Warn("Failed to delete processed queue row, stopping drain", "file_id", fileID, "error", err)
			return processed, nil
		}
		processed++
	}

	slog.Info("Drain complete", "tenant", s.ref.PrimaryID, "sub", s.ref.SubID, "processed", processed)
	return processed, nil
}

// QueueDepth returns the number of rows waiting on the queue sheet.
func (s *Service) QueueDepth(ctx context.Context) (int, error) {
	rows, err := s.tab.Read(ctx, store.RangeOn(s.ref.Regions().Queue, "A:B"))
	if err != nil {
		return 0, fmt.Errorf("reading queue sheet: %w", err)
	}
	return len(rows), nil
}

// AppendContact writes one contact row to the tenant's contact sheet,
// migrating the sheet schema first and recreating the workbook once if it
// turns out to have been deleted.
func (s *Service) AppendContact(ctx context.Context, fields ContactFields, source string) error {
	sheet, err := tenant.ContactsSheet(ctx, s.tab, s.ref)
	if err != nil {
		if !google.IsNotFound(err) {
			return err
		}
		if err := s.recreate(ctx); err != nil {
			return err
		}
		if sheet, err = tenant.ContactsSheet(ctx, s.tab, s.ref); err != nil {
			return err
		}
	}

	if !s.migrated {
		if err := EnsureCurrentSchema(ctx, s.tab, sheet); err != nil {
			slog.Warn("Schema migration failed, appending anyway", "sheet", sheet, "error", err)
		}
		s.migrated = true
	}

	row := [][]interface{}{EncodeRow(fields, source)}
	err = s.tab.Append(ctx, store.RangeOn(sheet, ""), row)
	if err == nil {
		return nil
	}
	if !google.IsNotFound(err) {
		return err
	}

	// The tenant deleted the workbook mid-flight. Recreate and retry once.
	if rerr := s.recreate(ctx); rerr != nil {
		return rerr
	}
	sheet, err = tenant.ContactsSheet(ctx, s.tab, s.ref)
	if err != nil {
		return err
	}
	return s.tab.Append(ctx, store.RangeOn(sheet, ""), row)
}
