package google

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthorizationPending means the user has not finished the device-code prompt yet.
	ErrAuthorizationPending = errors.New("authorization pending")

	// ErrClassicFlowDisabled is returned by the device-code path when no client
	// id/secret is configured.
	ErrClassicFlowDisabled = errors.New("client id and secret are not configured")
)

// AuthExchangeError is a failed authorization-code or device-code exchange.
// Status is 0 when the token endpoint could not be reached.
type AuthExchangeError struct {
	Status int
	Body   string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
}

// RateLimited reports whether the auth server asked us to slow down.
func (e *AuthExchangeError) RateLimited() bool { return isRateLimitStatus(e.Status) }

// IdentityFetchError is a failed userinfo lookup.
type IdentityFetchError struct {
	Status int
	Body   string
}

func (e *IdentityFetchError) Error() string {
	return fmt.Sprintf("user info request failed: status %d: %s", e.Status, e.Body)
}

// RefreshError is a failed refresh-token exchange.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: status %d: %s", e.Status, e.Body)
}

// RateLimited errors are retryable later and must not be treated as a revoked grant.
func (e *RefreshError) RateLimited() bool { return isRateLimitStatus(e.Status) }

// StatusOf extracts the upstream HTTP status carried by an auth error, or 0.
func StatusOf(err error) int {
	var (
		ex *AuthExchangeError
		id *IdentityFetchError
		rf *RefreshError
	)
	switch {
	case errors.As(err, &ex):
		return ex.Status
	case errors.As(err, &id):
		return id.Status
	case errors.As(err, &rf):
		return rf.Status
	}
	return 0
}

func isRateLimitStatus(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}
