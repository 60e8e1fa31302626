// internal/workers/dealroom/get-deal-room/handler_test.go
package getdealroom

import (
	"context"
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

func (m *MockService) Get(ctx context.Context, userID, dealRoomID string) (*dealroom.RoomView, error) {
	args := m.Called(ctx, userID, dealRoomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealroom.RoomView), args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	svc := new(MockService)
	svc.On("Get", mock.Anything, "user-a", "room-1").Return(&dealroom.RoomView{
		DealRoom: models.DealRoom{ID: "room-1", MatchID: "match-1", NDARequired: true},
		Access:   models.DealRoomAccess{DealRoomID: "room-1", UserID: "user-a", Level: models.AccessEdit},
	}, nil)
	svc.On("Get", mock.Anything, "user-z", "room-1").
		Return(nil, apperrors.NewNotFoundError("dealRoom", "room-1"))

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{UserID: "user-a", DealRoomID: "room-1"})
	require.NoError(t, err)
	assert.Equal(t, "room-1", output.DealRoom.ID)
	assert.Equal(t, models.AccessEdit, output.Access.Level)
	assert.False(t, output.AccessExpired)

	_, err = h.Execute(context.Background(), &Input{UserID: "user-z", DealRoomID: "room-1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

	svc.AssertExpectations(t)
}

func TestParseInput(t *testing.T) {
	_, err := parseInput(`{"userId":"user-a"}`)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}
