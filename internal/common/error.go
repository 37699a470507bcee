// Package common defines shared constants and sentinel errors used across the
// client and server layers of bandtrack. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrOwnershipConflict means a push upsert affected no row because the
	// target id already exists under a different tenant. Surfaced as HTTP 409
	// and must not be retried blindly.
	ErrOwnershipConflict = errors.New("ownership conflict")

	// ErrForeignKeyViolation is returned by local-store deletes when the row
	// is still referenced; callers degrade to a soft delete.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
