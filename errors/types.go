package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// NewError creates a new CityError with full control over its fields.
// For most cases, use one of the specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *CityError {
	return &CityError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewConfigError creates an error for setup failures: invalid model
// configuration, unknown backend kinds, empty category sets. These are
// fatal to setup and raised before any backend call.
func NewConfigError(message string, details map[string]interface{}) *CityError {
	return &CityError{
		Type:    ConfigError,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

// NewValidationError creates an error for invalid caller input, raised
// before any backend call is made.
func NewValidationError(message string, details map[string]interface{}) *CityError {
	return &CityError{
		Type:    ValidationError,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

// NewBackendError wraps a failure from the wrapped chat endpoint. The
// underlying error is preserved for unwrapping so the root cause is
// never masked.
func NewBackendError(message string, err error) *CityError {
	return &CityError{
		Type:    BackendError,
		Message: message,
		Code:    http.StatusBadGateway,
		err:     err,
	}
}

// NewMismatchError creates an error for a model reply that matched no
// known category. The raw reply and full category list are carried in
// Details for diagnosis.
func NewMismatchError(reply string, categories []string) *CityError {
	return &CityError{
		Type:    MismatchError,
		Message: fmt.Sprintf("classification result %q is not in the predefined categories: %v", reply, categories),
		Code:    http.StatusUnprocessableEntity,
		Details: map[string]interface{}{
			"reply":      reply,
			"categories": categories,
		},
	}
}

// NewInternalError creates an error for unexpected internal failures.
func NewInternalError(requestID string, err error) *CityError {
	return &CityError{
		Type:      InternalError,
		Message:   "internal error",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// IsType reports whether err is (or wraps) a CityError of the given type.
func IsType(err error, t ErrorType) bool {
	var ce *CityError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Type == t
}

// As is a wrapper around errors.As for error type assertion without a
// second import of the standard errors package at call sites.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
