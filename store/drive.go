package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/digicard/backend/ratelimit"
)

const (
	mimeFolder      = "application/vnd.google-apps.folder"
	mimeSpreadsheet = "application/vnd.google-apps.spreadsheet"
)

// Drive implements Objects over the Google Drive v3 API.
type Drive struct {
	svc     *drive.Service
	limiter *ratelimit.RateLimiter
}

// NewDrive creates an Objects adapter over the tenant's Drive.
func NewDrive(svc *drive.Service, limiter *ratelimit.RateLimiter) *Drive {
	if limiter == nil {
		limiter = ratelimit.NewRateLimiter(nil)
	}
	return &Drive{svc: svc, limiter: limiter}
}

// EnsureFolder implements Objects. Folder names starting with "." are the
// convention for app-internal folders the tenant is not expected to touch.
func (d *Drive) EnsureFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", name, mimeFolder)

	var folderID string
	err := d.limiter.ExecuteWithRetry(ctx, func() error {
		resp, err := d.svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Files) > 0 {
			folderID = resp.Files[0].Id
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("looking up folder %q: %w", name, err)
	}
	if folderID != "" {
		return folderID, nil
	}

	err = d.limiter.ExecuteWithRetry(ctx, func() error {
		created, err := d.svc.Files.Create(&drive.File{
			Name:     name,
			MimeType: mimeFolder,
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return err
		}
		folderID = created.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("creating folder %q: %w", name, err)
	}
	return folderID, nil
}

// Upload implements Objects.
func (d *Drive) Upload(ctx context.Context, folderID, name, mimeType string, content []byte) (string, error) {
	var fileID string
	err := d.limiter.ExecuteWithRetry(ctx, func() error {
		created, err := d.svc.Files.Create(&drive.File{
			Name:    name,
			Parents: []string{folderID},
		}).Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
			Fields("id").Context(ctx).Do()
		if err != nil {
			return err
		}
		fileID = created.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("uploading %q: %w", name, err)
	}
	return fileID, nil
}

// Download implements Objects.
func (d *Drive) Download(ctx context.Context, fileID string) ([]byte, error) {
	var content []byte
	err := d.limiter.ExecuteWithRetry(ctx, func() error {
		resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		content, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	return content, nil
}

// Delete implements Objects.
func (d *Drive) Delete(ctx context.Context, fileID string) error {
	err := d.limiter.ExecuteWithRetry(ctx, func() error {
		return d.svc.Files.Delete(fileID).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	return nil
}

// CreateWorkbook implements Objects. Creating the spreadsheet through Drive
// (instead of the Sheets API) lets it land directly in the app folder.
func (d *Drive) CreateWorkbook(ctx context.Context, folderID, title string) (string, error) {
	var workbookID string
	err := d.limiter.ExecuteWithRetry(ctx, func() error {
		created, err := d.svc.Files.Create(&drive.File{
			Name:     title,
			MimeType: mimeSpreadsheet,
			Parents:  []string{folderID},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return err
		}
		workbookID = created.Id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("creating workbook %q: %w", title, err)
	}
	return workbookID, nil
}
