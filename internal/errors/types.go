// Package errors defines the structured error types used by contactform.
//
// AppError carries a category, a stable code and an optional cause so callers
// can branch with errors.Is / errors.As. SubmissionError is the single kind of
// failure a visitor ever sees: the send operation rejected the message.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeSubmission ErrorType = "submission"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnknownField    = "ERR_UNKNOWN_FIELD"
	ErrCodeInvalidMessage  = "ERR_INVALID_MESSAGE"
	ErrCodeInvalidOrigin   = "ERR_INVALID_ORIGIN"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeProfileInvalid  = "ERR_PROFILE_INVALID"
	ErrCodeSendFailed      = "ERR_SEND_FAILED"
	ErrCodeComponentClosed = "ERR_COMPONENT_CLOSED"
	ErrCodeChallenge       = "ERR_CHALLENGE"
)

// AppError is a structured error type with context.
type AppError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel AppErrors can be compared.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *AppError {
	return &AppError{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	var se *SubmissionError
	return errors.As(err, &se)
}

// IsValidation reports whether err is a validation AppError.
func IsValidation(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type == ErrorTypeValidation
	}

	return false
}

// ErrComponentClosed is returned by handlers invoked after teardown.
var ErrComponentClosed = &AppError{
	Type:    ErrorTypeInternal,
	Code:    ErrCodeComponentClosed,
	Message: "contact component is closed",
}
