package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeOrgMissing   ErrorCode = "ORG_MISSING"
	ErrCodeSessionLost  ErrorCode = "SESSION_LOST"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrUserNotFound        = NewError(ErrCodeNotFound, "user not found")
	ErrOrgNotFound         = NewError(ErrCodeNotFound, "organization not found")
	ErrRoleNotFound        = NewError(ErrCodeNotFound, "role not found")
	ErrSessionNotFound     = NewError(ErrCodeNotFound, "session not found")
	ErrSessionLost         = NewError(ErrCodeSessionLost, "session lost, re-authentication required")
	ErrUnauthorized        = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload      = NewError(ErrCodeInvalid, "invalid payload")
	ErrEmptyMessage        = NewError(ErrCodeInvalid, "message content is empty")
	ErrOrganizationMissing = NewError(ErrCodeOrgMissing, "organization context missing")
	ErrProviderUnavailable = NewError(ErrCodeUnavailable, "auth provider unavailable")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsRecoverable reports whether the error belongs to the transient class that
// is surfaced as a notification rather than a hard failure.
func IsRecoverable(err error) bool {
	return IsDomainError(err, ErrCodeUnavailable) || IsDomainError(err, ErrCodeNotFound)
}
