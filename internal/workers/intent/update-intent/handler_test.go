// internal/workers/intent/update-intent/handler_test.go
package updateintent

import (
	"context"
	"testing"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Update(ctx context.Context, userID, intentID string, patch models.IntentPatch) (*models.Intent, error) {
	args := m.Called(ctx, userID, intentID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Intent), args.Error(1)
}

func TestParseInput_ValidatesPatch(t *testing.T) {
	input, err := parseInput(`{"userId":"user-a","intentId":"intent-1","patch":{"status":"paused"}}`)
	require.NoError(t, err)
	require.NotNil(t, input.Patch.Status)
	assert.Equal(t, models.IntentPaused, *input.Patch.Status)
	assert.False(t, input.Patch.TextChanged())

	_, err = parseInput(`{"userId":"user-a","intentId":"intent-1","patch":{"status":"archived"}}`)
	require.Error(t, err)
	stdErr, _ := apperrors.As(err)
	assert.Contains(t, stdErr.Details, "patch.status")

	_, err = parseInput(`{"userId":"user-a","patch":{}}`)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}

func TestHandler_Execute(t *testing.T) {
	title := "Copper cathodes, LME grade A"
	patch := models.IntentPatch{Title: &title}

	svc := new(MockService)
	svc.On("Update", mock.Anything, "user-a", "intent-1", patch).
		Return(&models.Intent{ID: "intent-1", Title: title, Status: models.IntentActive}, nil)
	svc.On("Update", mock.Anything, "user-b", "intent-1", patch).
		Return(nil, apperrors.NewNotFoundError("intent", "intent-1"))

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{UserID: "user-a", IntentID: "intent-1", Patch: patch})
	require.NoError(t, err)
	assert.Equal(t, title, output.Intent.Title)

	_, err = h.Execute(context.Background(), &Input{UserID: "user-b", IntentID: "intent-1", Patch: patch})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

	svc.AssertExpectations(t)
}
