// internal/workers/consent/decline-match/handler_test.go
package declinematch

import (
	"context"
	"testing"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/consent"
	"intent-broker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Decline(ctx context.Context, userID, matchID string) (*consent.DeclineResult, error) {
	args := m.Called(ctx, userID, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*consent.DeclineResult), args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	svc := new(MockService)
	svc.On("Decline", mock.Anything, "user-b", "match-1").Return(&consent.DeclineResult{
		Match:           consent.MatchView{MatchID: "match-1", Status: models.MatchDeclined},
		AlreadyDeclined: true,
	}, nil)
	svc.On("Decline", mock.Anything, "user-z", "match-1").
		Return(nil, apperrors.NewNotFoundError("match", "match-1"))

	h := NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{UserID: "user-b", MatchID: "match-1"})
	require.NoError(t, err)
	assert.True(t, output.AlreadyDeclined)
	assert.Equal(t, models.MatchDeclined, output.Match.Status)

	_, err = h.Execute(context.Background(), &Input{UserID: "user-z", MatchID: "match-1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

	svc.AssertExpectations(t)
}
