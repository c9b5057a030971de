package google

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "googleapi 404",
			err:  &googleapi.Error{Code: 404, Message: "Requested entity was not found."},
			want: 404,
		},
		{
			name: "wrapped googleapi 401",
			err:  fmt.Errorf("appending row: %w", &googleapi.Error{Code: 401}),
			want: 401,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: 0,
		},
		{
			name: "nil error",
			err:  nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "sentinel",
			err:  ErrNotFound,
			want: true,
		},
		{
			name: "wrapped sentinel",
			err:  fmt.Errorf("loading workbook: %w", ErrNotFound),
			want: true,
		},
		{
			name: "googleapi 404",
			err:  &googleapi.Error{Code: 404},
			want: true,
		},
		{
			name: "googleapi 500",
			err:  &googleapi.Error{Code: 500},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("not found-ish but untyped"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "reauth sentinel",
			err:  ErrReauthRequired,
			want: true,
		},
		{
			name: "wrapped reauth sentinel",
			err:  fmt.Errorf("building sheets client: %w", ErrReauthRequired),
			want: true,
		},
		{
			name: "googleapi 401",
			err:  &googleapi.Error{Code: 401, Message: "Invalid Credentials"},
			want: true,
		},
		{
			name: "googleapi 403 permission",
			err:  &googleapi.Error{Code: 403, Message: "The caller does not have permission"},
			want: true,
		},
		{
			name: "googleapi 403 quota is not auth",
			err:  &googleapi.Error{Code: 403, Message: "Quota exceeded for quota metric 'Read requests'"},
			want: false,
		},
		{
			name: "invalid_grant in message",
			err:  errors.New(`oauth2: "invalid_grant" "Token has been expired or revoked."`),
			want: true,
		},
		{
			name: "googleapi 404",
			err:  &googleapi.Error{Code: 404},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError() = %v, want %v", got, tt.want)
			}
		})
	}
}
