// Package errors provides the error handling system for the city-parse
// toolkit. It defines a structured error type shared by the model
// abstraction layer, the task packages, and the HTTP surface, together
// with JSON response formatting and integrated logging via Uber's zap.
//
// Every failure in the toolkit falls into one of a small set of
// categories (see ErrorType). Errors carry optional structured details
// so callers can inspect, for example, the raw model reply that failed
// category matching.
//
// Basic usage:
//
//	err := errors.NewConfigError("at least one category must be provided", nil)
//
//	if errors.IsType(err, errors.ConfigError) {
//	    // configuration problem, fail setup
//	}
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the
// package. It is initialized to a production configuration but can be
// overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of errors that can occur in the
// city-parse system. The taxonomy is deliberately small: each type maps
// to a distinct propagation policy.
type ErrorType string

const (
	// ConfigError represents setup failures: an empty category set,
	// an unknown backend kind, an invalid configuration file. These
	// are raised before any backend call is attempted.
	ConfigError ErrorType = "config_error"

	// ValidationError represents invalid caller input, such as an
	// empty text passed to classification. Raised before any backend
	// call.
	ValidationError ErrorType = "validation_error"

	// BackendError represents transport, authentication or
	// malformed-response failures from the wrapped chat endpoint.
	// These propagate to the caller unchanged; nothing in this
	// codebase converts them to sentinel strings.
	BackendError ErrorType = "backend_error"

	// MismatchError represents a model reply that matched no known
	// category after exact and fuzzy matching. It carries the raw
	// reply and the category list in Details.
	MismatchError ErrorType = "classification_mismatch"

	// InternalError represents unexpected internal failures,
	// including the aggregate failure when every confidence sample
	// mismatches.
	InternalError ErrorType = "internal_error"
)

// CityError is the structured error type used across the toolkit. It
// implements the error interface and is serializable to JSON for the
// HTTP surface while keeping the underlying cause for logging.
type CityError struct {
	// Type categorizes the error for handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request, when the
	// error surfaced through the HTTP layer
	RequestID string `json:"request_id,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It combines the error type,
// message, and underlying error (if any).
func (e *CityError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *CityError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, matching on Type while
// ignoring other fields.
func (e *CityError) Is(target error) bool {
	t, ok := target.(*CityError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError formats and writes a CityError to an http.ResponseWriter
// as a JSON response with the error's status code.
func WriteError(w http.ResponseWriter, err *CityError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Error("failed to encode error response", zap.Error(encErr))
	}
}

// Error is a drop-in replacement for http.Error that creates and writes
// a CityError with the InternalError type. It includes the request ID
// from the response headers if available.
func Error(w http.ResponseWriter, message string, code int) {
	requestID := w.Header().Get("X-Request-ID")
	WriteError(w, &CityError{
		Type:      InternalError,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	})
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	WriteError(w, &CityError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	})
}
