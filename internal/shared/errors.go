package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	//
	// ErrNoValidToken is the single "caller must re-authenticate" outcome.
	// It covers a missing credential, an expired credential that cannot be
	// refreshed, a failed refresh, and a remote 401 on a locally-fresh
	// token. Callers branch on it with errors.Is rather than catching a
	// panic or inspecting status codes.
	ErrNoValidToken  = fmt.Errorf("no valid token")
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")

	// API and domain errors
	ErrExternalAPI = fmt.Errorf("external API error")
	ErrNotFound    = fmt.Errorf("not found")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")

	// ErrInvalidState is a validation failure on the OAuth callback's
	// state parameter; it wraps ErrInvalidInput so callers mapping the
	// taxonomy need only one check.
	ErrInvalidState = fmt.Errorf("%w: invalid state parameter", ErrInvalidInput)
)
