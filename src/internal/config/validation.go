package config

import (
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var iptablesNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostport_or_empty":
		return "must be in format 'host:port' or empty"
	case "socket_mode":
		return "must be an octal file mode between 0000 and 0777, e.g. \"0660\""
	case "iptables_name":
		return "must consist only of letters, numbers and the characters _.+-"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	ItemName  string // Name of the item the error belongs to, if any
	FieldPath string // Dot-notation field path (e.g., "dnstap.socket_mode", "capture.table")
	Message   string // Human-readable error message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		if err.ItemName != "" {
			sb.WriteString(fmt.Sprintf("  %d. [%s] %s: %s\n", i+1, err.ItemName, err.FieldPath, err.Message))
		} else {
			sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.FieldPath, err.Message))
		}
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("hostport_or_empty", validateHostPortOrEmpty); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("socket_mode", validateSocketMode); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("iptables_name", validateIPTablesName); err != nil {
		panic(err)
	}

	// Register function to get field name from "toml" tag
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validator: host:port format or empty
func validateHostPortOrEmpty(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, _, err := net.SplitHostPort(value)
	return err == nil
}

// Custom validator: octal permission bits
func validateSocketMode(fl validator.FieldLevel) bool {
	d := DnstapConfig{SocketMode: fl.Field().String()}
	_, err := d.FileMode()
	return err == nil
}

func validateIPTablesName(fl validator.FieldLevel) bool {
	return iptablesNameRegexp.MatchString(fl.Field().String())
}
