package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// MapError is the structured error type for pathmap.
// It provides rich context for error handling, logging, and user presentation.
type MapError struct {
	// Code is the unique error code (e.g., "ERR_603_FRONTIER_EXHAUSTED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Search, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates a later attempt may succeed.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *MapError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MapError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with MapError.
func (e *MapError) Is(target error) bool {
	if t, ok := target.(*MapError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *MapError) WithDetail(key, value string) *MapError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *MapError) WithSuggestion(suggestion string) *MapError {
	e.Suggestion = suggestion
	return e
}

// New creates a new MapError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *MapError {
	return &MapError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a MapError from an existing error.
// The error's message becomes the MapError message.
func Wrap(code string, err error) *MapError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MapError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *MapError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *MapError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MapError {
	return New(ErrCodeInternal, message, cause)
}

// NotFound reports that a node identifier has no remote resource.
func NotFound(id string) *MapError {
	return New(ErrCodeNeighborsNotFound, "no neighbors for "+id, nil).
		WithDetail("node", id)
}

// FetchError reports a transient failure fetching a node's neighbors.
func FetchError(id string, cause error) *MapError {
	msg := "fetch neighbors for " + id
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return New(ErrCodeFetchFailed, msg, cause).WithDetail("node", id)
}

// ResourceExhausted reports that the frontier cannot admit a discovered batch.
func ResourceExhausted(id string, requested, available int) *MapError {
	return New(ErrCodeFrontierExhausted,
		fmt.Sprintf("frontier cannot admit %d nodes discovered from %s (%d free)", requested, id, available),
		nil).
		WithDetail("node", id).
		WithDetail("requested", strconv.Itoa(requested)).
		WithDetail("available", strconv.Itoa(available)).
		WithSuggestion("Raise search.frontier_capacity or use capacity_policy: requeue")
}

// DoubleExpansion reports an attempt to set children on an expanded node.
func DoubleExpansion(id string) *MapError {
	return New(ErrCodeDoubleExpansion, "node "+id+" is already expanded", nil).
		WithDetail("node", id)
}

// Cancelled reports an externally requested shutdown of a search.
func Cancelled(cause error) *MapError {
	return New(ErrCodeSearchCancelled, "search cancelled", cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a MapError with Retryable flag set.
func IsRetryable(err error) bool {
	var me *MapError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var me *MapError
	if errors.As(err, &me) {
		return me.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a MapError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var me *MapError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// GetCategory extracts the category from a MapError.
// Returns empty string if not a MapError.
func GetCategory(err error) Category {
	var me *MapError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}
