package tenant

import (
	"context"
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/oauth2"

	"github.com/digicard/backend/google"
	"github.com/digicard/backend/ratelimit"
	"github.com/digicard/backend/store"
)

// Tenant record fields read when binding a session.
const (
	FieldUserType  = "user_type"
	FieldAdmin     = "admin"
	FieldConnected = "google_connected"

	// FieldEmailEnabled gates follow-up emails for the whole account,
	// independent of which template (if any) is active.
	FieldEmailEnabled = "email_feature_enabled"

	// UserTypeSub marks a team member under an enterprise admin. Sub
	// accounts carry no Google credentials of their own; everything they
	// do runs against their admin's workbook.
	UserTypeSub = "sub_account"
)

// Session binds one authenticated request (or one sweep pass) to the
// workbook it operates on. Owner is the record holding the Google
// credentials and workbook ID: the admin record when the caller is a
// sub account, the caller itself otherwise.
type Session struct {
	Ref     Ref
	Owner   *core.Record
	Manager *Manager
	Objects store.Objects
	Tokens  oauth2.TokenSource
}

// NewSession resolves the caller to its workbook owner and wires the
// Google-backed stores for it. Returns google.ErrReauthRequired when the
// owner has not linked a Google account (or the link was revoked).
func NewSession(ctx context.Context, app core.App, auth *core.Record, limiter *ratelimit.RateLimiter) (*Session, error) {
	owner := auth
	ref := Primary(auth.Id)

	if auth.GetString(FieldUserType) == UserTypeSub {
		adminID := auth.GetString(FieldAdmin)
		if adminID == "" {
			return nil, fmt.Errorf("sub account %s has no admin", auth.Id)
		}
		admin, err := app.FindRecordById(auth.Collection().Name, adminID)
		if err != nil {
			return nil, fmt.Errorf("loading admin for sub account %s: %w", auth.Id, err)
		}
		owner = admin
		ref = Sub(admin.Id, auth.Id)
	}

	ts, err := google.TenantTokenSource(ctx, app, owner)
	if err != nil {
		return nil, err
	}

	sheetsSvc, err := google.NewSheetsService(ctx, ts)
	if err != nil {
		return nil, err
	}
	driveSvc, err := google.NewDriveService(ctx, ts)
	if err != nil {
		return nil, err
	}

	obj := store.NewDrive(driveSvc, limiter)
	mgr := NewManager(obj,
		func(spreadsheetID string) store.Tabular {
			return store.NewSheets(sheetsSvc, spreadsheetID, limiter)
		},
		func(record *core.Record) error { return app.Save(record) },
	)

	return &Session{
		Ref:     ref,
		Owner:   owner,
		Manager: mgr,
		Objects: obj,
		Tokens:  ts,
	}, nil
}

// SubAccountIDs returns the IDs of the admin's sub accounts, in creation
// order. Used by the combined export and the queue sweep.
func SubAccountIDs(app core.App, admin *core.Record) ([]string, error) {
	records, err := app.FindRecordsByFilter(
		admin.Collection().Name,
		fmt.Sprintf("%s = '%s' && %s = '%s'", FieldAdmin, admin.Id, FieldUserType, UserTypeSub),
		"created",
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sub accounts for %s: %w", admin.Id, err)
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Id)
	}
	return ids, nil
}
