// internal/workers/consent/decline-match/models.go
package declinematch

import "intent-broker/internal/consent"

type Input struct {
	UserID  string `json:"userId" validate:"required"`
	MatchID string `json:"matchId" validate:"required"`
}

type Output struct {
	Match           consent.MatchView `json:"match"`
	AlreadyDeclined bool              `json:"alreadyDeclined"`
}
