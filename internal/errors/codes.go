// Package errors provides structured error handling for Inquira.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Ingestion errors (extraction, chunking)
//   - 3XX: Capability errors (embedding, generation - transient network)
//   - 4XX: Index errors (unavailable, inconsistent)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIngest indicates document ingestion errors.
	CategoryIngest Category = "INGEST"
	// CategoryCapability indicates embedding/generation capability errors.
	CategoryCapability Category = "CAPABILITY"
	// CategoryIndex indicates index availability or consistency errors.
	CategoryIndex Category = "INDEX"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// Ingestion errors (200-299)
	ErrCodeExtractionFailed = "ERR_201_EXTRACTION_FAILED"
	ErrCodeDocumentEmpty    = "ERR_202_DOCUMENT_EMPTY"

	// Capability errors (300-399) - transient, retried with backoff
	ErrCodeEmbeddingUnavailable  = "ERR_301_EMBEDDING_UNAVAILABLE"
	ErrCodeGenerationUnavailable = "ERR_302_GENERATION_UNAVAILABLE"
	ErrCodeStageOutputInvalid    = "ERR_303_STAGE_OUTPUT_INVALID"

	// Index errors (400-499)
	ErrCodeIndexUnavailable  = "ERR_401_INDEX_UNAVAILABLE"
	ErrCodeIndexInconsistent = "ERR_402_INDEX_INCONSISTENT"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeInvalidInput = "ERR_502_INVALID_INPUT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIngest
	case '3':
		return CategoryCapability
	case '4':
		return CategoryIndex
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexInconsistent:
		// Fatal for the affected document: it must be re-ingested.
		return SeverityFatal
	case ErrCodeIndexUnavailable:
		// One index down still leaves the surviving path (degraded mode).
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a transient, retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingUnavailable, ErrCodeGenerationUnavailable:
		return true
	default:
		return false
	}
}
