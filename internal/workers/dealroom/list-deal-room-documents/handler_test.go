// internal/workers/dealroom/list-deal-room-documents/handler_test.go
package listdealroomdocuments

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

func (m *MockService) ListDocuments(ctx context.Context, userID, dealRoomID string) (*dealroom.DocumentList, error) {
	args := m.Called(ctx, userID, dealRoomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealroom.DocumentList), args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	svc := new(MockService)
	svc.On("ListDocuments", mock.Anything, "user-b", "room-1").Return(&dealroom.DocumentList{
		DealRoomID:  "room-1",
		NDARequired: true,
		Documents:   []models.Document{{ID: "doc-1", Category: models.DocNDA}},
	}, nil)
	svc.On("ListDocuments", mock.Anything, "user-a", "room-1").
		Return(nil, apperrors.NewPreconditionFailedError("Deal room access expired", "active_access", "expired"))

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{UserID: "user-b", DealRoomID: "room-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, output.Count)
	assert.False(t, output.NDASigned)

	_, err = h.Execute(context.Background(), &Input{UserID: "user-a", DealRoomID: "room-1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodePreconditionFailed))

	svc.AssertExpectations(t)
}
