// Package common defines shared constants and sentinel errors used across
// client and server layers of GophSync. Callers should use errors.Is and
// errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorConflict     = errors.New("conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrNetwork marks transient transport failures. Operations failing with
	// it are retried without limit.
	ErrNetwork = errors.New("network error")

	// ErrStaleGeneration is returned internally when a collection was reset
	// while an operation was in flight. The result of that operation is dropped.
	ErrStaleGeneration = errors.New("collection reset while operation was in flight")
)

// ValidationError is returned when the server rejects a mutation. It is never
// retried automatically.
type ValidationError struct {
	Model  string
	ID     string
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s/%s rejected: %s", e.Op, e.Model, e.ID, e.Reason)
}

// CorruptionError reports a persisted table that could not be decoded.
type CorruptionError struct {
	Table string
	Err   error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("persisted table %q is corrupt: %v", e.Table, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried. Everything except
// validation failures and stale-generation results is considered transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	if errors.Is(err, ErrStaleGeneration) {
		return false
	}
	return true
}
