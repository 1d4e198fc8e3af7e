package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Caller input errors.
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")

	// Authentication outcomes.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWrongCurrentPassword rejects a password change for an already
	// authenticated caller; it is not a login failure.
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrAccountLocked      = errors.New("account locked")
	ErrRateLimited        = errors.New("too many requests")

	// Token lifecycle errors.
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenReuseDetected = errors.New("token reuse detected, all sessions in this family have been revoked")
	ErrResetTokenInvalid  = errors.New("invalid or expired reset token")
)

// ValidationError carries per-field messages. It matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a message for field. The first message per field wins.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// LockedError reports a temporarily locked account. It matches ErrAccountLocked.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return ErrAccountLocked.Error() + ", try again later"
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }
