// internal/workers/matching/list-my-matches/models.go
package listmymatches

import "intent-broker/internal/consent"

type Input struct {
	UserID string `json:"userId" validate:"required"`
}

type Output struct {
	Matches []consent.MatchView `json:"matches"`
	Count   int                 `json:"count"`
}
