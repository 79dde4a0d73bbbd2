// Package errors provides structured error types for statusline.
// All errors include a category, code, message, and retryable flag so the
// transports can map them to client responses consistently.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that produced them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategorySnapshot   ErrorCategory = "SNAPSHOT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeMissingEntity    = "MISSING_ENTITY"
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeInvalidWindow    = "INVALID_WINDOW"
	CodeInvalidEvent     = "INVALID_EVENT"

	// Storage codes
	CodeReadFailed     = "READ_FAILED"
	CodeWriteFailed    = "WRITE_FAILED"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// StatusError is the structured error type used throughout the system.
type StatusError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StatusError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *StatusError) Is(target error) bool {
	var t *StatusError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new StatusError.
func New(category ErrorCategory, code, message string) *StatusError {
	return &StatusError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new StatusError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *StatusError {
	return &StatusError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *StatusError) WithDetails(details map[string]interface{}) *StatusError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a StatusError.
func GetCategory(err error) ErrorCategory {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a StatusError.
func GetCode(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// ClientMessage returns the text reported to API clients. Storage failures
// surface the store's own description; everything else its message.
func ClientMessage(err error) string {
	var se *StatusError
	if !errors.As(err, &se) {
		return err.Error()
	}
	if se.Category == ErrCategoryStorage && se.Cause != nil {
		return se.Cause.Error()
	}
	return se.Message
}

// Only object transfers are retried; the status read path never is.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *StatusError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *StatusError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewSnapshotError(code, message string, cause error) *StatusError {
	return Wrap(ErrCategorySnapshot, code, message, cause)
}

func NewInternalError(message string, cause error) *StatusError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
