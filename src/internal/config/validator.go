package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig validates the entire configuration and returns all validation errors
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	if c.General == nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "general",
			Message:   "configuration must contain 'general' section",
		})
		return validationErrors
	}

	if err := validate.Struct(c.General); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "general", "")...)
	}

	rulesFile := c.GetAbsRulesFile()
	if c.General.RulesFile != "" {
		if _, err := os.Stat(rulesFile); errors.Is(err, os.ErrNotExist) {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: "general.rules_file",
				Message:   fmt.Sprintf("file does not exist: %s", rulesFile),
			})
		}
	}

	validationErrors = append(validationErrors, c.validateCapture()...)

	if c.Dnstap != nil {
		if err := validate.Struct(c.Dnstap); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "dnstap", "")...)
		}
	}

	if c.API != nil {
		if err := validate.Struct(c.API); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, "api", "")...)
		}
	}

	if !c.CaptureEnabled() && !c.DnstapEnabled() {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "capture.enable",
			Message:   "at least one of capture or dnstap must be enabled",
		})
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

func (c *Config) validateCapture() ValidationErrors {
	var validationErrors ValidationErrors
	if c.Capture == nil {
		return nil
	}

	if err := validate.Struct(c.Capture); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "capture", "")...)
	}

	if c.Capture.InstallRule {
		if c.Capture.Table == "" {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: "capture.table",
				Message:   "table cannot be empty when install_rule is set",
			})
		}
		if c.Capture.Chain == "" {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: "capture.chain",
				Message:   "chain cannot be empty when install_rule is set",
			})
		}
		if len(c.Capture.Rule) == 0 {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: "capture.rule",
				Message:   "rule cannot be empty when install_rule is set",
			})
		}
	}

	seenIfaces := make(map[string]bool)
	for _, iface := range c.Capture.Interfaces {
		if seenIfaces[iface] {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: "capture.interfaces",
				Message:   fmt.Sprintf("duplicate interface: %s", iface),
			})
		}
		seenIfaces[iface] = true
	}

	return validationErrors
}

// CaptureEnabled reports whether the NFLOG transport is configured to run.
func (c *Config) CaptureEnabled() bool {
	return c.Capture != nil && c.Capture.Enable
}

// DnstapEnabled reports whether the dnstap socket transport is configured to run.
func (c *Config) DnstapEnabled() bool {
	return c.Dnstap != nil && c.Dnstap.Enable
}

// APIEnabled reports whether the HTTP status API is configured to run.
func (c *Config) APIEnabled() bool {
	return c.API != nil && c.API.Enable
}

// convertValidatorErrors converts go-playground/validator errors to our ValidationError format
func convertValidatorErrors(err error, fieldPrefix string, itemName string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if e.Field() != "" {
				// e.Field() returns the TOML tag name because of RegisterTagNameFunc
				fieldName := e.Field()

				if fieldPrefix != "" {
					fieldPath = fieldPrefix + "." + fieldName
				} else {
					fieldPath = fieldName
				}
			}

			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: fieldPath,
				Message:   getValidationMessage(e),
			})
		}
	}

	return validationErrors
}
