package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorCarriesSentinel(t *testing.T) {
	err := WrapError(ErrMissingBucket, ErrorTypeForecast, CodeMissingBucket, "no average for time of day 7200")

	assert.True(t, errors.Is(err, ErrMissingBucket))
	assert.False(t, errors.Is(err, ErrDataNotFound))
	assert.Equal(t, ErrMissingBucket, err.Unwrap())
}

func TestAppErrorIsMatchesTypeAndCode(t *testing.T) {
	err := NewProvisioningError(CodeProvisioningFailed, "endpoint failed")

	assert.True(t, errors.Is(err, NewProvisioningError(CodeProvisioningFailed, "other message")))
	assert.False(t, errors.Is(err, NewProvisioningError(CodeProvisioningTimeout, "other message")))
	assert.False(t, errors.Is(err, NewStorageError(CodeProvisioningFailed, "other message")))
}

func TestRetryableClassification(t *testing.T) {
	retryable := WrapError(ErrProvisioningTimeout, ErrorTypeProvisioning, CodeProvisioningTimeout, "still creating")
	assert.True(t, retryable.Retryable)

	connection := WrapError(ErrStorageConnectionFailed, ErrorTypeStorage, CodeConnectionFailed, "not connected")
	assert.True(t, connection.Retryable)

	terminal := WrapError(ErrProvisioningFailed, ErrorTypeProvisioning, CodeProvisioningFailed, "quota exceeded")
	assert.False(t, terminal.Retryable)
}

func TestErrorStringIncludesDetails(t *testing.T) {
	err := NewValidationError(CodeInvalidDate, "bad date").WithDetails("got '2024-13-99'")
	assert.Equal(t, "INVALID_DATE: bad date - got '2024-13-99'", err.Error())
}

func TestErrorAsThroughWrapping(t *testing.T) {
	inner := WrapError(ErrInsufficientData, ErrorTypeTraining, CodeInsufficientData, "not enough rows")

	var appErr *AppError
	require.ErrorAs(t, error(inner), &appErr)
	assert.Equal(t, CodeInsufficientData, appErr.Code)
	assert.True(t, errors.Is(inner, ErrInsufficientData))
}
