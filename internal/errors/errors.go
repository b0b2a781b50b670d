// Package errors provides a lightweight structured error type (BookbinderError)
// for stage-based classification and exit-code mapping in the CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the pipeline stage or concern an error belongs to.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Pipeline stage errors
	CategoryScan     ErrorCategory = "scan"
	CategoryManifest ErrorCategory = "manifest"
	CategoryRender   ErrorCategory = "render"
	CategoryAssemble ErrorCategory = "assemble"
	CategoryPaginate ErrorCategory = "paginate"
	CategoryPublish  ErrorCategory = "publish"

	// Runtime and infrastructure errors
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// BookbinderError is a structured error with category, retryability, and context
type BookbinderError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for BookbinderError
type ContextFields map[string]any

// Error implements the error interface
func (e *BookbinderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *BookbinderError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *BookbinderError) WithContext(key string, value any) *BookbinderError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new BookbinderError
func New(category ErrorCategory, severity ErrorSeverity, message string) *BookbinderError {
	return &BookbinderError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new BookbinderError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *BookbinderError {
	return &BookbinderError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// WrapRetryable creates a new retryable BookbinderError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *BookbinderError {
	return &BookbinderError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if be, ok := err.(*BookbinderError); ok {
		return be.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if be, ok := err.(*BookbinderError); ok {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a BookbinderError
func GetCategory(err error) ErrorCategory {
	if be, ok := err.(*BookbinderError); ok {
		return be.Category
	}
	return CategoryInternal
}

// ValidationError creates a new validation error
func ValidationError(message string) *BookbinderError {
	return &BookbinderError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// WrapError wraps an existing error with a new BookbinderError at SeverityError
func WrapError(err error, category ErrorCategory, message string) *BookbinderError {
	return &BookbinderError{
		Category: category,
		Severity: SeverityError,
		Message:  message,
		Cause:    err,
	}
}
