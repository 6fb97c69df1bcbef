package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without cause",
			err:      &Error{Code: ErrCodeConfig, Message: "invalid configuration"},
			expected: "[CONFIG_ERROR] invalid configuration",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeRules, "line 3: illegal family", errors.New("unknown family \"ipx\"")),
			expected: "[RULES_ERROR] line 3: illegal family: unknown family \"ipx\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "wrapper", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected errors.Is to find the cause")
	}
}

func TestError_Is(t *testing.T) {
	err1 := &Error{Code: ErrCodeCapture, Message: "failed to open nflog"}
	err2 := &Error{Code: ErrCodeCapture, Message: "another error"}
	err3 := &Error{Code: ErrCodeStream, Message: "failed to listen"}

	if !err1.Is(err2) {
		t.Errorf("Expected errors with same code to match")
	}

	if err1.Is(err3) {
		t.Errorf("Expected errors with different codes to not match")
	}

	if !errors.Is(NewStreamError("bind", nil), New(ErrCodeStream, "")) {
		t.Errorf("Expected errors.Is to match by code")
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		err  *Error
		code ErrorCode
	}{
		{NewConfigError("m", cause), ErrCodeConfig},
		{NewRulesError("m", cause), ErrCodeRules},
		{NewCaptureError("m", cause), ErrCodeCapture},
		{NewStreamError("m", cause), ErrCodeStream},
		{NewExecError("m", cause), ErrCodeExec},
		{NewNetworkError("m", cause), ErrCodeNetwork},
		{NewValidationError("m", cause), ErrCodeValidation},
		{NewInternalError("m", cause), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %v, got %v", tt.code, tt.err.Code)
			}
			if tt.err.Message != "m" {
				t.Errorf("Expected message 'm', got %v", tt.err.Message)
			}
			if tt.err.Cause != cause {
				t.Errorf("Expected cause to be preserved")
			}
		})
	}
}
