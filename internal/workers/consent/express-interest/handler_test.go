// internal/workers/consent/express-interest/handler_test.go
package expressinterest

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

func (m *MockService) ExpressInterest(ctx context.Context, userID, matchID string) (*consent.InterestResult, error) {
	args := m.Called(ctx, userID, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*consent.InterestResult), args.Error(1)
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	return NewHandler(&Config{Timeout: time.Second}, svc, logger.NewTestLogger(t))
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name       string
		result     *consent.InterestResult
		wantMutual bool
	}{
		{
			name:   "first consent",
			result: &consent.InterestResult{Match: consent.MatchView{MatchID: "match-1", Status: models.MatchUser1Interested, MyConsent: true}},
		},
		{
			name:       "second consent reaches mutual",
			result:     &consent.InterestResult{Match: consent.MatchView{MatchID: "match-1", Status: models.MatchMutualInterest, MyConsent: true, CounterpartConsent: true}},
			wantMutual: true,
		},
		{
			name:   "repeat call",
			result: &consent.InterestResult{Match: consent.MatchView{MatchID: "match-1", Status: models.MatchUser1Interested, MyConsent: true}, AlreadyConsented: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("ExpressInterest", mock.Anything, "user-a", "match-1").Return(tt.result, nil)

			output, err := newTestHandler(t, svc).Execute(context.Background(), &Input{UserID: "user-a", MatchID: "match-1"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantMutual, output.MutualInterest)
			assert.Equal(t, tt.result.AlreadyConsented, output.AlreadyConsented)
			assert.Equal(t, tt.result.Match, output.Match)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_DeclinedMatch(t *testing.T) {
	svc := new(MockService)
	svc.On("ExpressInterest", mock.Anything, "user-a", "match-1").
		Return(nil, apperrors.NewPreconditionFailedError("Match is closed", "pending", "declined"))

	_, err := newTestHandler(t, svc).Execute(context.Background(), &Input{UserID: "user-a", MatchID: "match-1"})

	assert.True(t, apperrors.Is(err, apperrors.ErrCodePreconditionFailed))
	bpmnErr := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
	assert.Equal(t, 0, bpmnErr.Retries)
	assert.Equal(t, "declined", bpmnErr.ErrorVariables["actualState"])
}

func TestParseInput(t *testing.T) {
	_, err := parseInput(`{"userId":"user-a"}`)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))

	input, err := parseInput(`{"userId":"user-a","matchId":"match-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "match-1", input.MatchID)
}
