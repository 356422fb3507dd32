package errors

import (
	"fmt"
)

// Error is the structured error type for Inquira.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_201_EXTRACTION_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Ingest, Capability, Index, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ExtractionError creates a document extraction error.
// Extraction failures are structural: reported, not retried.
func ExtractionError(message string, cause error) *Error {
	return New(ErrCodeExtractionFailed, message, cause)
}

// EmbeddingError creates an embedding capability error (transient, retryable).
func EmbeddingError(message string, cause error) *Error {
	return New(ErrCodeEmbeddingUnavailable, message, cause)
}

// GenerationError creates a generation capability error (transient, retryable).
func GenerationError(message string, cause error) *Error {
	return New(ErrCodeGenerationUnavailable, message, cause)
}

// IndexUnavailableError creates an index availability error.
// Retrieval degrades to the surviving index when one side is down.
func IndexUnavailableError(message string, cause error) *Error {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// InconsistentIndexError creates an index consistency error for one document.
// The document must be re-ingested; other documents are unaffected.
func InconsistentIndexError(documentID string, cause error) *Error {
	e := New(ErrCodeIndexInconsistent,
		fmt.Sprintf("index membership disagrees for document %s", documentID), cause)
	return e.WithDetail("document_id", documentID).
		WithSuggestion("re-ingest the document with 'inquira index'")
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an Error with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*Error); ok {
		return ie.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*Error); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an Error.
// Returns empty string if not an Error.
func GetCode(err error) string {
	if ie, ok := err.(*Error); ok {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from an Error.
// Returns empty string if not an Error.
func GetCategory(err error) Category {
	if ie, ok := err.(*Error); ok {
		return ie.Category
	}
	return ""
}
