package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of application errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeStore         ErrorType = "store"
	ErrorTypeStaleIdentity ErrorType = "stale_identity"
)

// AppError represents a structured application error
type AppError struct {
	Type     ErrorType              `json:"type"`
	Message  string                 `json:"message"`
	Internal error                  `json:"-"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewStoreError creates a new store error wrapping the underlying failure
func NewStoreError(message string, internal error) *AppError {
	return &AppError{
		Type:     ErrorTypeStore,
		Message:  message,
		Internal: internal,
	}
}

// NewStaleIdentityError creates a new stale identity error
func NewStaleIdentityError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeStaleIdentity,
		Message: message,
	}
}

// NewRateLimitError creates a new rate limit error. A zero cooldown means
// the per-minute cap was hit rather than the cooldown gate.
func NewRateLimitError(message string, cooldown time.Duration) *AppError {
	err := &AppError{
		Type:    ErrorTypeRateLimit,
		Message: message,
	}
	if cooldown > 0 {
		err.Details = map[string]interface{}{
			"cooldown_ms": cooldown.Milliseconds(),
		}
	}
	return err
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsRateLimited reports whether err is a rate limit error
func IsRateLimited(err error) bool {
	return IsType(err, ErrorTypeRateLimit)
}

// IsStaleIdentity reports whether err is a stale identity error
func IsStaleIdentity(err error) bool {
	return IsType(err, ErrorTypeStaleIdentity)
}

// CooldownRemaining extracts the remaining cooldown from a rate limit
// error, or zero when the error carries none.
func CooldownRemaining(err error) time.Duration {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return 0
	}
	ms, ok := appErr.Details["cooldown_ms"].(int64)
	if !ok {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
