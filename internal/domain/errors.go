package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidReference = errors.New("invalid variant reference")
	ErrDuplicateVariant = errors.New("duplicate variant id")
	ErrEmptyReference   = errors.New("variant reference table is empty")
	ErrEmptyInput       = errors.New("no genotype data supplied")
	ErrHistoryDisabled  = errors.New("analysis history is disabled")
)

// Error codes returned in API error bodies
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodePayloadTooBig  = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// APIError represents a standardized error response
type APIError struct {
	Code          string    `json:"code"`
	Message       string    `json:"error"`
	Details       string    `json:"details,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, correlationID string) *APIError {
	return &APIError{
		Code:          code,
		Message:       message,
		Details:       details,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ConfigurationError is returned when the variant reference table cannot be built.
// It is fatal at startup.
type ConfigurationError struct {
	Source    string
	VariantID string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("reference configuration (%s): variant %s: %v", e.Source, e.VariantID, e.Err)
	}
	return fmt.Sprintf("reference configuration (%s): %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(source, variantID string, err error) *ConfigurationError {
	return &ConfigurationError{Source: source, VariantID: variantID, Err: err}
}
