package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Constructors
// ==========================

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")

	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"registry unavailable", NewRegistryUnavailableError(cause), ErrCodeRegistryUnavailable, true},
		{"registry invalid", NewRegistryError("file", cause), ErrCodeRegistryInvalid, false},
		{"registry fetch", NewRegistryFetchError("http", cause), ErrCodeRegistryFetchFailed, true},
		{"submission", NewSubmissionError("missing answers"), ErrCodeSubmissionMalformed, false},
		{"cache", NewCacheError("get", cause), ErrCodeCacheUnavailable, true},
		{"internal", NewInternalError(cause), ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Details)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestStandardError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("load: %w", NewRegistryFetchError("postgres", cause))

	assert.True(t, stderrors.Is(err, cause))

	std := Normalize(err)
	assert.Equal(t, ErrCodeRegistryFetchFailed, std.Code)
	assert.Equal(t, "postgres", std.Metadata["source"])
}

func TestNormalize_PlainError(t *testing.T) {
	std := Normalize(fmt.Errorf("unexpected"))
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.False(t, std.Retryable)
	assert.Equal(t, "unexpected", std.Details)
}

// ==========================
// BPMN conversion
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewRegistryUnavailableError(nil))
	assert.Equal(t, "REGISTRY_UNAVAILABLE", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.True(t, bpmn.Retryable)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "REGISTRY_UNAVAILABLE", vars["errorCode"])
	assert.Equal(t, "REGISTRY_UNAVAILABLE", vars["originalErrorCode"])
	require.Contains(t, vars, "timestamp")

	bpmn = ConvertToBPMNError(NewSubmissionError("not an object"))
	assert.Equal(t, "SUBMISSION_MALFORMED", bpmn.Code)
	assert.Zero(t, bpmn.Retries)

	bpmn = ConvertToBPMNError(NewInternalError(fmt.Errorf("x")))
	assert.Equal(t, "INTERNAL_ERROR", bpmn.Code)
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeRegistryInvalid:          "REGISTRY",
		ErrCodeSubmissionMalformed:      "VALIDATION",
		ErrCodeInputValidationFailed:    "VALIDATION",
		ErrCodeQueryExecutionFailed:     "DATABASE",
		ErrCodeDatabaseConnectionFailed: "DATABASE",
		ErrCodeCacheUnavailable:         "CACHE",
		ErrCodeTimeout:                  "INTEGRATION",
		ErrCodeInternal:                 "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeRegistryUnavailable))
	assert.True(t, IsRetryableErrorCode(ErrCodeCacheUnavailable))
	assert.False(t, IsRetryableErrorCode(ErrCodeRegistryInvalid))
	assert.False(t, IsRetryableErrorCode(ErrCodeSubmissionMalformed))
}
