package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Error types for the identifier search system
type ErrorType string

const (
	// Path errors
	ErrorTypePathNotFound  ErrorType = "path_not_found"
	ErrorTypePathForbidden ErrorType = "path_forbidden"

	// Request errors
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// Engine errors
	ErrorTypeSpawn  ErrorType = "spawn"
	ErrorTypeSearch ErrorType = "search"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// PathError reports a search path that was rejected before any engine ran
type PathError struct {
	Type       ErrorType
	Path       string
	Resolved   string
	Prefix     string // Forbidden prefix that matched, if any
	Underlying error
	Timestamp  time.Time
}

// NewPathNotFoundError creates an error for a path that does not exist
func NewPathNotFoundError(path string, err error) *PathError {
	return &PathError{
		Type:       ErrorTypePathNotFound,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewPathForbiddenError creates an error for a path under a blocked prefix
func NewPathForbiddenError(path, prefix string) *PathError {
	return &PathError{
		Type:      ErrorTypePathForbidden,
		Path:      path,
		Prefix:    prefix,
		Timestamp: time.Now(),
	}
}

// WithResolved records the canonical form of the rejected path
func (e *PathError) WithResolved(resolved string) *PathError {
	e.Resolved = resolved
	return e
}

// Error implements the error interface
func (e *PathError) Error() string {
	if e.Type == ErrorTypePathForbidden {
		return fmt.Sprintf("Access to %s is not allowed", e.Prefix)
	}
	return fmt.Sprintf("Search path does not exist: %s", e.Path)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *PathError) Unwrap() error {
	return e.Underlying
}

// RequestError reports a request that failed validation
type RequestError struct {
	Type      ErrorType
	Field     string
	Message   string
	Timestamp time.Time
}

// NewRequestError creates a new validation error for a request field
func NewRequestError(field, format string, args ...interface{}) *RequestError {
	return &RequestError{
		Type:      ErrorTypeInvalidRequest,
		Field:     field,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *RequestError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SpawnError reports a failure to launch the search engine
type SpawnError struct {
	Type       ErrorType
	Binary     string
	Underlying error
	Timestamp  time.Time
}

// NewSpawnError creates a new spawn error
func NewSpawnError(binary string, err error) *SpawnError {
	return &SpawnError{
		Type:       ErrorTypeSpawn,
		Binary:     binary,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start search engine %q: %v", e.Binary, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SpawnError) Unwrap() error {
	return e.Underlying
}

// SearchError represents a search operation error after the engine started
type SearchError struct {
	Type       ErrorType
	Command    string
	Underlying error
	Timestamp  time.Time
}

// NewSearchError creates a new search error
func NewSearchError(command string, err error) *SearchError {
	return &SearchError{
		Type:       ErrorTypeSearch,
		Command:    command,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for %s: %v", e.Command, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// TypeOf classifies an error chain. Unknown errors are internal.
func TypeOf(err error) ErrorType {
	var pathErr *PathError
	if stderrors.As(err, &pathErr) {
		return pathErr.Type
	}
	var reqErr *RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.Type
	}
	var spawnErr *SpawnError
	if stderrors.As(err, &spawnErr) {
		return spawnErr.Type
	}
	var searchErr *SearchError
	if stderrors.As(err, &searchErr) {
		return searchErr.Type
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return ErrorTypeConfig
	}
	return ErrorTypeInternal
}

// StatusCode maps an error chain to the HTTP status reported to callers
func StatusCode(err error) int {
	switch TypeOf(err) {
	case ErrorTypePathNotFound, ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypePathForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
