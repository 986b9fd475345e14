// =============================================================================
// Weekly Recon - Feed Validation
// =============================================================================
//
// This module checks an input feed against its FeedSchema before any
// processing happens. It is used by the 'validate' command, and the
// pipeline loaders take their required column lists from the same schemas.
//
// VALIDATION STRATEGY:
//   Validation is performed at two levels:
//   1. Header-level: every required column must be present (error)
//   2. Field-level:  each non-empty value must match its data type (warning)
//
// ERROR HANDLING:
//   - Errors are collected, not returned immediately
//   - Each error includes the feed, row, column and value
//   - Header errors are fatal at run time; field warnings become audit
//     entries when the pipeline meets the same rows
//
// =============================================================================

package validation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carrierledger/weekly-recon/internal/csvparser"
	"github.com/carrierledger/weekly-recon/internal/normalize"
	"github.com/carrierledger/weekly-recon/internal/reference"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError for findings that stop a run and
	// SeverityWarning for recoverable ones.
	Severity string

	// Feed is the schema name of the checked feed.
	Feed string

	// Field is the column that failed validation.
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// RowNumber is the source row number, or 0 for header findings.
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.RowNumber == 0 {
		return fmt.Sprintf("[%s] %s, Field '%s': %s",
			strings.ToUpper(e.Severity), e.Feed, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s row %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Feed,
		e.RowNumber,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all validation errors (including warnings).
	Errors []*ValidationError

	// ErrorCount is the number of fatal errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// FieldsValidated is the total number of values checked.
	FieldsValidated int

	// RowsValidated is the total number of data rows checked.
	RowsValidated int
}

func (r *ValidationResult) add(err *ValidationError, options ValidationOptions) {
	r.Errors = append(r.Errors, err)
	if err.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
	if options.TreatWarningsAsErrors {
		r.IsValid = false
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks feeds against one schema.
type Validator struct {
	schema  FeedSchema
	options ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors treats warnings as fatal errors.
	// Default: false
	TreatWarningsAsErrors bool

	// MaxWarnings stops field checks after this many warnings. Zero means
	// no limit.
	MaxWarnings int
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{}
}

// NewValidator creates a new Validator for schema.
func NewValidator(schema FeedSchema) *Validator {
	return &Validator{
		schema:  schema,
		options: DefaultValidationOptions(),
	}
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(schema FeedSchema, options ValidationOptions) *Validator {
	return &Validator{
		schema:  schema,
		options: options,
	}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// ValidateFeed checks the header and every row of data.
//
// RETURNS:
//   - A ValidationResult; IsValid is false when a required column is missing.
func (v *Validator) ValidateFeed(data *csvparser.CSVData) *ValidationResult {
	result := &ValidationResult{
		IsValid:       true,
		RowsValidated: data.Len(),
	}

	// =========================================================================
	// HEADER VALIDATION
	// =========================================================================

	for _, col := range v.schema.RequiredColumns() {
		if !data.HasColumn(col) {
			result.add(&ValidationError{
				Severity: SeverityError,
				Feed:     v.schema.Name,
				Field:    col,
				Rule:     "required_column",
				Message:  "Required column is missing",
			}, v.options)
		}
	}

	// =========================================================================
	// FIELD VALIDATION
	// =========================================================================

	for i, row := range data.Rows {
		for _, field := range v.schema.Fields {
			value, ok := row[field.Column]
			if !ok || strings.TrimSpace(value) == "" {
				continue
			}
			result.FieldsValidated++

			if msg := validateDataType(value, field.DataType); msg != "" {
				result.add(&ValidationError{
					Severity:  SeverityWarning,
					Feed:      v.schema.Name,
					Field:     field.Column,
					Value:     value,
					Rule:      "data_type",
					Message:   msg,
					RowNumber: data.RowNumbers[i],
				}, v.options)

				if v.options.MaxWarnings > 0 && result.WarningCount >= v.options.MaxWarnings {
					return result
				}
			}
		}
	}

	return result
}

// =============================================================================
// DATA TYPE VALIDATORS
// =============================================================================

// validateDataType validates a value against a data type.
//
// RETURNS:
//   - An error message if validation fails, empty string if valid.
//
// SUPPORTED DATA TYPES:
//   - string:  Any text value (always valid)
//   - amount:  Money, as the normalizer parses it
//   - percent: Allocation percentage, as the reference loader parses it
//   - numeric: Whole numbers, scientific notation allowed
//   - date:    Payment date in one of the accepted layouts
func validateDataType(value, dataType string) string {
	switch dataType {
	case "", "string":
		return ""

	case "amount":
		if _, err := normalize.ParseAmount(value); err != nil {
			return fmt.Sprintf("Value '%s' is not a valid amount", value)
		}

	case "percent":
		if _, err := reference.NormalizePercentage(value); err != nil {
			return fmt.Sprintf("Value '%s' is not a valid percentage", value)
		}

	case "numeric":
		return validateNumeric(value)

	case "date":
		if _, ok := normalize.ParsePaymentDate(value); !ok {
			return fmt.Sprintf("Value '%s' is not a valid date", value)
		}
	}

	return ""
}

// validateNumeric validates that a value is a whole number.
func validateNumeric(value string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !d.IsInteger() {
		return fmt.Sprintf("Value '%s' is not a valid integer", value)
	}
	return ""
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file with a timestamped
// header.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("=", 80) + "\n")
	builder.WriteString("Weekly Recon - Validation Log\n")
	builder.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format(time.DateTime)))
	builder.WriteString(strings.Repeat("=", 80) + "\n\n")
	builder.WriteString(FormatErrors(errors))

	if err := os.WriteFile(filePath, []byte(builder.String()), 0644); err != nil {
		return fmt.Errorf("failed to write validation log: %w", err)
	}
	return nil
}
