package errors

import (
	stderrors "errors"
	"fmt"
)

// KBError is the structured error type for dkb.
// It carries a stable code for programmatic handling plus a
// human-readable message and optional underlying cause.
type KBError struct {
	// Code is the unique error code (e.g., "ERR_401_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Validation, Internal).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *KBError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *KBError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with KBError.
func (e *KBError) Is(target error) bool {
	if t, ok := target.(*KBError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *KBError) WithDetail(key, value string) *KBError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new KBError with the given code and message.
// Category is derived from the code.
func New(code string, message string, cause error) *KBError {
	return &KBError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a KBError from an existing error.
// Returns nil if err is nil.
func Wrap(code string, err error) *KBError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a lookup error for an unknown path or identifier.
func NotFound(what, key string) *KBError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", what, key), nil).WithDetail("key", key)
}

// Conflict creates an error for a duplicate path on a create-only operation.
func Conflict(path string) *KBError {
	return New(ErrCodeConflict, fmt.Sprintf("document already exists: %s", path), nil).WithDetail("path", path)
}

// InvalidConfig creates an error for invalid chunking or engine parameters.
func InvalidConfig(message string) *KBError {
	return New(ErrCodeInvalidChunkParams, message, nil)
}

// CorruptStore creates an error for a backing file that fails validation.
func CorruptStore(path string, cause error) *KBError {
	return New(ErrCodeCorruptStore, fmt.Sprintf("store file is corrupt: %s", path), cause).WithDetail("path", path)
}

// IOFailure wraps an underlying read/write error from the backing medium.
func IOFailure(op string, cause error) *KBError {
	return New(ErrCodeIOFailure, fmt.Sprintf("%s failed: %v", op, cause), cause)
}

// Internal creates an internal error.
func Internal(message string, cause error) *KBError {
	return New(ErrCodeInternal, message, cause)
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsInvalidConfig reports whether err is an InvalidConfig error.
func IsInvalidConfig(err error) bool {
	return hasCode(err, ErrCodeInvalidChunkParams) || hasCode(err, ErrCodeConfigInvalid)
}

// IsCorruptStore reports whether err is a CorruptStore error.
func IsCorruptStore(err error) bool {
	return hasCode(err, ErrCodeCorruptStore)
}

func hasCode(err error, code string) bool {
	var kbErr *KBError
	if stderrors.As(err, &kbErr) {
		return kbErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error chain.
// Returns ErrCodeInternal for non-KBError errors.
func GetCode(err error) string {
	var kbErr *KBError
	if stderrors.As(err, &kbErr) {
		return kbErr.Code
	}
	return ErrCodeInternal
}
