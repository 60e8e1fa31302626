package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError_RetryableCodes(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"db query", NewDatabaseQueryError("load match", fmt.Errorf("conn reset")), 3},
		{"storage", NewStorageError("put nda", fmt.Errorf("503")), 3},
		{"timeout", NewTimeoutError("genai", context.DeadlineExceeded), 2},
		{"not found", NewNotFoundError("match", "m-1"), 0},
		{"precondition", NewPreconditionFailedError("mutual_interest required", "mutual_interest", "pending"), 0},
		{"internal", NewInternalError(fmt.Errorf("boom")), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesStateMetadata(t *testing.T) {
	err := NewPreconditionFailedError("mutual_interest required", "mutual_interest", "user1_interested")
	vars := ConvertToBPMNError(err).ToErrorVariables()

	assert.Equal(t, "PRECONDITION_FAILED", vars["errorCode"])
	assert.Equal(t, "mutual_interest", vars["requiredState"])
	assert.Equal(t, "user1_interested", vars["actualState"])
	assert.Equal(t, false, vars["retryable"])
}

func TestNotFound_DoesNotLeakOwnership(t *testing.T) {
	err := NewNotFoundError("intent", "i-1")
	assert.Equal(t, "intent not found", err.Message)
}

func TestIsAndAs_ThroughWrapping(t *testing.T) {
	base := NewNotFoundError("match", "m-1")
	wrapped := fmt.Errorf("express interest: %w", base)

	assert.True(t, Is(wrapped, ErrCodeNotFound))
	assert.False(t, Is(wrapped, ErrCodePreconditionFailed))

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)
}

func TestStandardError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("pq: connection refused")
	err := NewDatabaseWriteError("insert match", cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, Normalize(fmt.Errorf("scoring: %w", context.DeadlineExceeded)).Code)
	assert.Equal(t, ErrCodeInternal, Normalize(fmt.Errorf("unexpected")).Code)

	nf := NewNotFoundError("deal room", "r-1")
	assert.Same(t, nf, Normalize(nf))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseWriteFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeScoringFailed))
	assert.Equal(t, "BUSINESS", GetErrorCategory(ErrCodePreconditionFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeTimeout))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeNotificationSendFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidInput))
}
