package google

import (
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	// ErrReauthRequired indicates the tenant's delegated credentials are
	// missing or revoked and the tenant must re-link their Google account.
	ErrReauthRequired = errors.New("google: tenant reauthorization required")

	// ErrNotFound indicates a remote resource (spreadsheet, sheet, file)
	// no longer exists.
	ErrNotFound = errors.New("google: resource not found")
)

// StatusCode extracts the HTTP status code from a Google API error chain.
// Returns 0 if the error is not a googleapi error.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsNotFound reports whether the error means the remote resource is gone.
// A tenant can delete their contact workbook from Drive at any time, so
// callers treat 404 as "recreate and retry", not as a failure.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return StatusCode(err) == 404
}

// IsAuthError reports whether the error means the tenant's credentials are
// no longer usable and a drain or append run should abort rather than retry.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrReauthRequired) {
		return true
	}
	switch StatusCode(err) {
	case 401, 403:
		// 403 is ambiguous: quota errors are also 403 but those are
		// retried upstream by the rate limiter before reaching here.
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "quota") || strings.Contains(msg, "ratelimit") {
			return false
		}
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_grant")
}
