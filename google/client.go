// Package google provides Google API client initialization for DigiCard.
//
// Unlike a service-account integration, every tenant links their own Google
// account: the backend holds a per-tenant refresh token and mints short-lived
// access tokens on demand, persisting refreshed tokens back to the tenant
// record.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	envEnabled      = "GOOGLE_INTEGRATION_ENABLED"
	envClientID     = "GOOGLE_CLIENT_ID"
	envClientSecret = "GOOGLE_CLIENT_SECRET"
)

// Scopes are the delegated scopes requested when a tenant links their
// Google account. Drive covers both file storage and the Sheets API;
// gmail.modify is needed to send follow-up emails as the tenant.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/gmail.modify",
}

// IsEnabled returns true if the Google integration is enabled via environment variable
func IsEnabled() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(envEnabled)))
	return val == "true" || val == "1"
}

// OAuthConfig builds the OAuth2 client configuration from the environment.
func OAuthConfig() (*oauth2.Config, error) {
	clientID := strings.TrimSpace(os.Getenv(envClientID))
	clientSecret := strings.TrimSpace(os.Getenv(envClientSecret))
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}, nil
}

// TenantTokenSource returns a token source backed by the tenant's delegated
// credentials. Access tokens are refreshed transparently; a refreshed token
// is persisted back to the tenant record so later requests skip the refresh.
// Returns ErrReauthRequired if the tenant has no usable refresh token.
func TenantTokenSource(ctx context.Context, app core.App, record *core.Record) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig()
	if err != nil {
		return nil, err
	}

	refreshToken := record.GetString("google_refresh_token")
	if refreshToken == "" {
		return nil, ErrReauthRequired
	}

	tok := &oauth2.Token{
		AccessToken:  record.GetString("google_access_token"),
		RefreshToken: refreshToken,
		Expiry:       record.GetDateTime("google_token_expiry").Time(),
	}

	return &persistingTokenSource{
		app:    app,
		record: record,
		src:    cfg.TokenSource(ctx, tok),
		last:   tok.AccessToken,
	}, nil
}

// persistingTokenSource wraps an oauth2.TokenSource and writes refreshed
// access tokens back to the tenant record. If the refresh token has been
// revoked it disconnects the tenant and surfaces ErrReauthRequired.
type persistingTokenSource struct {
	app    core.App
	record *core.Record
	src    oauth2.TokenSource
	mu     sync.Mutex
	last   string
}

// Token implements oauth2.TokenSource
func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.src.Token()
	if err != nil {
		if isRevokedGrant(err) {
			p.disconnect()
			return nil, ErrReauthRequired
		}
		return nil, fmt.Errorf("refreshing google token: %w", err)
	}

	if tok.AccessToken != p.last {
		p.record.Set("google_access_token", tok.AccessToken)
		p.record.Set("google_token_expiry", tok.Expiry)
		if err := p.app.Save(p.record); err != nil {
			// Not fatal: the token is still valid for this request,
			// the next request just pays for another refresh.
			slog.Warn("Failed to persist refreshed Google token",
				"tenant", p.record.Id, "error", err)
		}
		p.last = tok.AccessToken
	}

	return tok, nil
}

// disconnect clears the tenant's stored tokens after a revoked grant so the
// dashboard prompts them to re-link instead of looping on a dead token.
func (p *persistingTokenSource) disconnect() {
	slog.Warn("Google token revoked, disconnecting tenant", "tenant", p.record.Id)
	p.record.Set("google_connected", false)
	p.record.Set("google_access_token", "")
	p.record.Set("google_refresh_token", "")
	if err := p.app.Save(p.record); err != nil {
		slog.Warn("Failed to mark tenant disconnected", "tenant", p.record.Id, "error", err)
	}
}

// isRevokedGrant reports whether a token refresh failed because the grant
// was revoked or expired (as opposed to a transient network error).
func isRevokedGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	return strings.Contains(strings.ToLower(string(re.Body)), "invalid_grant")
}
