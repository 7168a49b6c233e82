package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Boundary errors are constructed with one of these as the
// cause so callers can classify with errors.Is without matching codes.
var (
	// Validation errors
	ErrInvalidReading = errors.New("invalid reading")
	ErrInvalidDate    = errors.New("invalid date: expected YYYY-MM-DD")
	ErrInvalidMetric  = errors.New("invalid metric")
	ErrEmptyDataset   = errors.New("dataset contains no rows")
	ErrMissingBucket  = errors.New("no bucket average for time of day")

	// Storage errors
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrDataNotFound            = errors.New("data not found")

	// Training errors
	ErrInsufficientData    = errors.New("insufficient training data")
	ErrModelTrainingFailed = errors.New("model training failed")

	// Provisioning errors
	ErrProvisioningFailed  = errors.New("provisioning reported terminal failure")
	ErrProvisioningTimeout = errors.New("provisioning poll budget exhausted")
	ErrUnknownStatus       = errors.New("provisioning reported unrecognized status")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypeTraining     ErrorType = "training"
	ErrorTypeProvisioning ErrorType = "provisioning"
	ErrorTypeForecast     ErrorType = "forecast"
	ErrorTypeIngest       ErrorType = "ingest"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Retryable  bool                   `json:"retryable"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Retryable:  false,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		Retryable:  isRetryable(err),
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewTrainingError creates a training error
func NewTrainingError(code, message string) *AppError {
	return NewAppError(ErrorTypeTraining, code, message)
}

// NewProvisioningError creates a provisioning error
func NewProvisioningError(code, message string) *AppError {
	return NewAppError(ErrorTypeProvisioning, code, message)
}

// NewForecastError creates a forecast error
func NewForecastError(code, message string) *AppError {
	return NewAppError(ErrorTypeForecast, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternalError,
		Message:    message,
		Retryable:  false,
		HTTPStatus: 500,
	}
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeStorage:
		return 404
	case ErrorTypeTraining, ErrorTypeForecast, ErrorTypeInternal:
		return 500
	case ErrorTypeProvisioning, ErrorTypeIngest:
		return 503
	default:
		return 500
	}
}

// isRetryable determines if an error is retryable
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrStorageConnectionFailed):
		return true
	case errors.Is(err, ErrProvisioningTimeout):
		return true
	default:
		return false
	}
}

// Error codes for different error scenarios
const (
	// Validation error codes
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidReading   = "INVALID_READING"
	CodeInvalidDate      = "INVALID_DATE"
	CodeInvalidMetric    = "INVALID_METRIC"
	CodeMalformedEntry   = "MALFORMED_ENTRY"

	// Storage error codes
	CodeStorageError        = "STORAGE_ERROR"
	CodeConnectionFailed    = "CONNECTION_FAILED"
	CodeDataNotFound        = "DATA_NOT_FOUND"
	CodeWriteFailed         = "WRITE_FAILED"
	CodeReadFailed          = "READ_FAILED"
	CodeDeleteFailed        = "DELETE_FAILED"
	CodeCorruptPartition    = "CORRUPT_PARTITION"
	CodeSerializationFailed = "SERIALIZATION_FAILED"

	// Training error codes
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeTrainingFailed   = "TRAINING_FAILED"
	CodePackagingFailed  = "PACKAGING_FAILED"

	// Provisioning error codes
	CodeProvisioningFailed  = "PROVISIONING_FAILED"
	CodeProvisioningTimeout = "PROVISIONING_TIMEOUT"
	CodeUnknownStatus       = "UNKNOWN_STATUS"
	CodeCreateFailed        = "CREATE_FAILED"
	CodeInvokeFailed        = "INVOKE_FAILED"

	// Forecast error codes
	CodeMissingBucket  = "MISSING_BUCKET"
	CodeForecastFailed = "FORECAST_FAILED"

	// Ingest error codes
	CodeReceiveFailed = "RECEIVE_FAILED"
	CodeAppendFailed  = "APPEND_FAILED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
