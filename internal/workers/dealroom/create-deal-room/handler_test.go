// internal/workers/dealroom/create-deal-room/handler_test.go
package createdealroom

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/dealroom"
	"intent-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, userID, matchID string) (*dealroom.CreateResult, error) {
	args := m.Called(ctx, userID, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealroom.CreateResult), args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	ndaID := "doc-1"
	svc := new(MockService)
	svc.On("Create", mock.Anything, "user-a", "match-1").Return(&dealroom.CreateResult{
		DealRoom:      models.DealRoom{ID: "room-1", MatchID: "match-1", Name: "Deal Room - Match #match-1", NDARequired: true},
		NDADocumentID: &ndaID,
	}, nil)

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))
	output, err := h.Execute(context.Background(), &Input{UserID: "user-a", MatchID: "match-1"})
	require.NoError(t, err)

	raw, err := json.Marshal(output)
	require.NoError(t, err)
	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, "doc-1", vars["ndaDocumentId"])
	assert.Equal(t, false, vars["existing"])
	assert.Equal(t, "room-1", vars["dealRoom"].(map[string]interface{})["id"])

	svc.AssertExpectations(t)
}

func TestHandler_Execute_NotMutual(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, "user-a", "match-1").
		Return(nil, apperrors.NewPreconditionFailedError("Mutual interest required", "mutual_interest", "pending"))

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{UserID: "user-a", MatchID: "match-1"})

	assert.True(t, apperrors.Is(err, apperrors.ErrCodePreconditionFailed))
	svc.AssertExpectations(t)
}
