package gourdianauth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPrincipal is returned when a principal is missing its ID or login.
	// It signals a caller bug, not a client error.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrConfiguration wraps every configuration validation failure.
	// Constructors return it at startup; it is never produced per request.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrVerificationFailed is the single opaque error for any access token that
	// fails signature, issuer, audience, type or expiry checks.
	ErrVerificationFailed = errors.New("access token verification failed")

	// ErrRotationFailed is returned when a refresh token is absent, expired or
	// already used. Callers must treat it as "re-authenticate".
	ErrRotationFailed = errors.New("refresh token rotation failed")

	// ErrIdentityMismatch is returned when the principal passed to Rotate does not
	// own the consumed session.
	ErrIdentityMismatch = errors.New("refresh session identity mismatch")

	// ErrSessionNotFound is returned by registries when a token does not resolve
	// to a live session.
	ErrSessionNotFound = errors.New("refresh session not found")

	// ErrTokenCollision is returned when a freshly generated refresh token already
	// exists in the registry.
	ErrTokenCollision = errors.New("refresh token collision")
)

// IdentityMismatchError carries both sides of a failed ownership check.
type IdentityMismatchError struct {
	SessionOwner uuid.UUID
	Presented    uuid.UUID
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("%s: session owned by %s, presented %s", ErrIdentityMismatch.Error(), e.SessionOwner, e.Presented)
}

func (e *IdentityMismatchError) Unwrap() error { return ErrIdentityMismatch }

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
