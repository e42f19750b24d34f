package service

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the services in this package. Handlers map
// them onto HTTP statuses; everything else is treated as internal.
var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("resource not found")

	// ErrInvalidInput covers malformed caller input: bad token strings,
	// missing names, unusable email addresses.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDenied is a workflow guard refusal: wrong lifecycle state, wrong
	// actor, or a self-approval attempt.
	ErrDenied = errors.New("operation not permitted")

	// ErrMailNotConfigured means the email settings row is absent or
	// incomplete; mail-dependent operations refuse before any network I/O.
	ErrMailNotConfigured = errors.New("email settings not configured")

	// ErrTokenExpired rejects redemption of a token past its validity window.
	ErrTokenExpired = errors.New("approval token expired")
)

// NotificationError wraps an outbound email failure. A submit transition
// that fails with this error has been fully rolled back.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("approval notification failed: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
