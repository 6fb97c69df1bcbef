// Package errors provides domain-specific error types for the keen-dnsset application.
//
// Errors that stop the process (bad rule file, failed transport bind) carry an
// error code so callers and tests can tell them apart with errors.Is.
// Per-packet failures use plain sentinel errors in the packages that detect them.
package errors

import "fmt"

// ErrorCode represents a category of error that can occur in the application.
type ErrorCode string

const (
	// ErrCodeConfig indicates a configuration-related error.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeRules indicates a malformed or unreadable rule file.
	ErrCodeRules ErrorCode = "RULES_ERROR"

	// ErrCodeCapture indicates a failure of the NFLOG capture transport.
	ErrCodeCapture ErrorCode = "CAPTURE_ERROR"

	// ErrCodeStream indicates a failure of the Frame Streams socket transport.
	ErrCodeStream ErrorCode = "STREAM_ERROR"

	// ErrCodeExec indicates a failed nftables update.
	ErrCodeExec ErrorCode = "EXEC_ERROR"

	// ErrCodeNetwork indicates a network configuration error (iptables rules, interfaces).
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"

	// ErrCodeValidation indicates a validation error.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewRulesError creates a new rule file error.
func NewRulesError(message string, cause error) *Error {
	return Wrap(ErrCodeRules, message, cause)
}

// NewCaptureError creates a new capture transport error.
func NewCaptureError(message string, cause error) *Error {
	return Wrap(ErrCodeCapture, message, cause)
}

// NewStreamError creates a new Frame Streams transport error.
func NewStreamError(message string, cause error) *Error {
	return Wrap(ErrCodeStream, message, cause)
}

// NewExecError creates a new nftables execution error.
func NewExecError(message string, cause error) *Error {
	return Wrap(ErrCodeExec, message, cause)
}

// NewNetworkError creates a new network configuration error.
func NewNetworkError(message string, cause error) *Error {
	return Wrap(ErrCodeNetwork, message, cause)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, cause error) *Error {
	return Wrap(ErrCodeValidation, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}
