package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInternal is the generic error reported for failures the client cannot act on.
var ErrInternal = NewInternalError("internal server error", nil)

// ValidationError represents a malformed request: a path parameter or body
// that cannot be decoded. It says nothing about field contents.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// HTTPStatus returns the HTTP status for this error
func (e *ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

// Code returns the machine readable error code
func (e *ValidationError) Code() string {
	return "validation_error"
}

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status for this error
func (e *InternalError) HTTPStatus() int {
	return http.StatusInternalServerError
}

// Code returns the machine readable error code
func (e *InternalError) Code() string {
	return "internal_error"
}

// HTTPStatuser is implemented by errors that know their HTTP status
type HTTPStatuser interface {
	error
	HTTPStatus() int
	Code() string
}

// AsHTTPStatuser finds the first error in err's chain that carries an HTTP
// status. Errors without one are reported as ErrInternal.
func AsHTTPStatuser(err error) HTTPStatuser {
	var hs HTTPStatuser
	if errors.As(err, &hs) {
		return hs
	}
	return NewInternalError(ErrInternal.Message, err)
}
