package api

import (
	"encoding/json"
	"net/http"
)

// ErrorCode represents standard API error codes.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates malformed or invalid request data.
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeForbidden indicates the client is not allowed to use the API.
	ErrCodeForbidden ErrorCode = "forbidden"

	// ErrCodeInternalError indicates an internal server error.
	ErrCodeInternalError ErrorCode = "internal_error"
)

// APIError represents a structured API error response.
type APIError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code ErrorCode, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to an APIError.
func (e APIError) WithDetails(details map[string]interface{}) APIError {
	e.Details = details
	return e
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, statusCode int, err APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// WriteInvalidRequest writes a 400 Bad Request error.
func WriteInvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, NewAPIError(ErrCodeInvalidRequest, message))
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// WriteInternalError writes a 500 Internal Server Error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}
