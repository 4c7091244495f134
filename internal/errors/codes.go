// Package errors provides structured error handling for coatseek.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Catalog/storage errors
//   - 3XX: Upstream collaborator errors (timeouts, unavailability)
//   - 4XX: Request validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates catalog store and index errors.
	CategoryStorage Category = "STORAGE"
	// CategoryUpstream indicates collaborator (store, embedder, classifier) errors.
	CategoryUpstream Category = "UPSTREAM"
	// CategoryValidation indicates request validation errors.
	CategoryValidation Category = "VALIDATION"
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
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Catalog/storage errors (200-299)
	ErrCodeCatalogOpen  = "ERR_201_CATALOG_OPEN"
	ErrCodeCatalogQuery = "ERR_202_CATALOG_QUERY"
	ErrCodeIndexCorrupt = "ERR_203_INDEX_CORRUPT"
	ErrCodeIngestLocked = "ERR_204_INGEST_LOCKED"
	ErrCodeWorkbookRead = "ERR_205_WORKBOOK_READ"

	// Upstream errors (300-399)
	ErrCodeUpstreamTimeout     = "ERR_301_UPSTREAM_TIMEOUT"
	ErrCodeUpstreamUnavailable = "ERR_302_UPSTREAM_UNAVAILABLE"
	ErrCodePlanParse           = "ERR_303_PLAN_PARSE"

	// Validation errors (400-499)
	ErrCodeInvalidRequest = "ERR_401_INVALID_REQUEST"
	ErrCodeEmptyQuery     = "ERR_402_EMPTY_QUERY"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from an error code prefix.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryUpstream
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from an error code.
// Upstream timeouts and plan parse failures are warnings: the cascade
// degrades instead of aborting.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeUpstreamTimeout, ErrCodePlanParse:
		return SeverityWarning
	case ErrCodeConfigNotFound, ErrCodeIndexCorrupt:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code
// may be retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeUpstreamTimeout, ErrCodeUpstreamUnavailable, ErrCodeIngestLocked:
		return true
	default:
		return false
	}
}
