package remote

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the screen layer as distinct conditions.
var (
	// ErrNoCredential means the token source had nothing to offer. The
	// coordinator treats it as "cannot dispatch now" and queues.
	ErrNoCredential = errors.New("no credential available")

	// ErrUnauthorized means the backend rejected the credential. Requires
	// re-authentication; never silently retried forever.
	ErrUnauthorized = errors.New("backend rejected credential")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether the error is worth retrying at the next
// reconciliation pass. Transport errors, timeouts, and server-side
// failures are transient; credential problems and validation rejections
// are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoCredential) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode == 408 || apiErr.StatusCode == 429:
			return true
		default:
			return false
		}
	}
	// Anything else is a transport-level failure (connection refused,
	// reset, deadline exceeded).
	return true
}

// IsRejection reports whether the backend permanently rejected the request
// (validation error, conflict). The local optimistic copy is kept and
// flagged; the error is surfaced to the user.
func IsRejection(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != 408 && apiErr.StatusCode != 429
	}
	return false
}
