// internal/workers/intent/create-intent/handler_test.go
package createintent

import (
	"context"
	"testing"
	"time"

	"intent-broker/internal/common/config"
	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, userID string, draft models.IntentDraft) (*models.Intent, error) {
	args := m.Called(ctx, userID, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Intent), args.Error(1)
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	return NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))
}

// ==========================
// Tests
// ==========================

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 5*time.Second, LoadConfig(config.WorkerConfig{Timeout: 5000}).Timeout)
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   string
	}{
		{
			name:      "valid",
			variables: `{"userId":"user-a","intent":{"kind":"buy","title":"Crude oil cargo"}}`,
		},
		{
			name:      "malformed json",
			variables: `{"userId":`,
			wantErr:   "parse variables",
		},
		{
			name:      "missing user",
			variables: `{"intent":{"kind":"buy","title":"Crude oil cargo"}}`,
			wantErr:   "userId",
		},
		{
			name:      "unknown kind",
			variables: `{"userId":"user-a","intent":{"kind":"lease","title":"Crude oil cargo"}}`,
			wantErr:   "intent.kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(tt.variables)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "user-a", input.UserID)
				assert.Equal(t, models.IntentBuy, input.Intent.Kind)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
			stdErr, _ := apperrors.As(err)
			assert.Contains(t, stdErr.Details, tt.wantErr)
		})
	}
}

func TestHandler_Execute_Success(t *testing.T) {
	svc := new(MockService)
	draft := models.IntentDraft{Kind: models.IntentBuy, Title: "Crude oil cargo"}
	created := &models.Intent{ID: "intent-1", UserID: "user-a", Kind: models.IntentBuy, Title: "Crude oil cargo", Status: models.IntentActive}
	svc.On("Create", mock.Anything, "user-a", draft).Return(created, nil)

	output, err := newTestHandler(t, svc).Execute(context.Background(), &Input{UserID: "user-a", Intent: draft})

	require.NoError(t, err)
	assert.Equal(t, created, output.Intent)
	svc.AssertExpectations(t)
}

func TestHandler_Execute_ServiceError(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, "user-a", mock.Anything).
		Return(nil, apperrors.NewInvalidInputError("minValue: must not exceed maxValue"))

	output, err := newTestHandler(t, svc).Execute(context.Background(), &Input{UserID: "user-a"})

	assert.Nil(t, output)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
	svc.AssertExpectations(t)
}
