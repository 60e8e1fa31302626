// internal/workers/dealroom/list-my-deal-rooms/handler_test.go
package listmydealrooms

import (
	"context"
	"errors"
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

func (m *MockService) ListMine(ctx context.Context, userID string) ([]*models.DealRoomMembership, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DealRoomMembership), args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	svc := new(MockService)
	svc.On("ListMine", mock.Anything, "user-a").Return([]*models.DealRoomMembership{
		{DealRoom: models.DealRoom{ID: "room-2", MatchID: "match-2"}, Access: models.DealRoomAccess{DealRoomID: "room-2", UserID: "user-a"}},
		{DealRoom: models.DealRoom{ID: "room-1", MatchID: "match-1"}, Access: models.DealRoomAccess{DealRoomID: "room-1", UserID: "user-a", NDASigned: true}},
	}, nil)
	svc.On("ListMine", mock.Anything, "user-z").Return([]*models.DealRoomMembership{}, nil)
	svc.On("ListMine", mock.Anything, "user-x").
		Return(nil, apperrors.NewDatabaseQueryError("list_deal_rooms", errors.New("connection reset")))

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{UserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, 2, output.Count)
	assert.Equal(t, "room-2", output.DealRooms[0].DealRoom.ID)
	assert.True(t, output.DealRooms[1].Access.NDASigned)

	empty, err := h.Execute(context.Background(), &Input{UserID: "user-z"})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.NotNil(t, empty.DealRooms)

	_, err = h.Execute(context.Background(), &Input{UserID: "user-x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeDatabaseQueryFailed))

	svc.AssertExpectations(t)
}

func TestParseInput(t *testing.T) {
	_, err := parseInput(`{}`)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))

	input, err := parseInput(`{"userId":"user-a"}`)
	require.NoError(t, err)
	assert.Equal(t, "user-a", input.UserID)
}
