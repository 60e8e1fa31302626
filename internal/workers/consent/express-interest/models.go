// internal/workers/consent/express-interest/models.go
package expressinterest

import "intent-broker/internal/consent"

type Input struct {
	UserID  string `json:"userId" validate:"required"`
	MatchID string `json:"matchId" validate:"required"`
}

type Output struct {
	Match            consent.MatchView `json:"match"`
	AlreadyConsented bool              `json:"alreadyConsented"`
	MutualInterest   bool              `json:"mutualInterest"`
}
