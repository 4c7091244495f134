package errors

import (
	"errors"
	"fmt"
)

// SearchError is the structured error type for coatseek.
// It provides rich context for error handling, logging, and the
// caller-facing distinction between "search failed" and "nothing found".
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_301_UPSTREAM_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Upstream, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Collaborator names the failing external collaborator, when known
	// (e.g., "catalog-store", "similarity-service", "classifier").
	Collaborator string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Collaborator != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Collaborator, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SearchError.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCollaborator tags the error with the failing collaborator's identity.
// Returns the error for method chaining.
func (e *SearchError) WithCollaborator(name string) *SearchError {
	e.Collaborator = name
	return e
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SearchError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error.
// The error's message becomes the SearchError message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Timeout creates an upstream-timeout error for the named collaborator.
// The cascade recovers from these locally; the stage is treated as empty.
func Timeout(collaborator string, cause error) *SearchError {
	return New(ErrCodeUpstreamTimeout, "deadline exceeded", cause).WithCollaborator(collaborator)
}

// Unavailable creates an upstream-unavailable error for the named collaborator.
func Unavailable(collaborator string, cause error) *SearchError {
	msg := "connection failed"
	if cause != nil {
		msg = cause.Error()
	}
	return New(ErrCodeUpstreamUnavailable, msg, cause).WithCollaborator(collaborator)
}

// PlanParse creates an error for malformed classifier output.
// Recovered via the deterministic fallback planner.
func PlanParse(cause error) *SearchError {
	return New(ErrCodePlanParse, "classifier returned unparsable plan", cause).WithCollaborator("classifier")
}

// InvalidRequest creates a client-facing validation error. Not retryable.
func InvalidRequest(message string) *SearchError {
	return New(ErrCodeInvalidRequest, message, nil)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsUpstream reports whether the error originated from an external
// collaborator (as opposed to a client or internal error).
func IsUpstream(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Category == CategoryUpstream
	}
	return false
}

// GetCode extracts the error code from a SearchError.
// Returns empty string if not a SearchError.
func GetCode(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Collaborator extracts the failing collaborator's identity, if tagged.
func Collaborator(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Collaborator
	}
	return ""
}
