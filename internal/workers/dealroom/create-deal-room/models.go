// internal/workers/dealroom/create-deal-room/models.go
package createdealroom

import "intent-broker/internal/dealroom"

type Input struct {
	UserID  string `json:"userId" validate:"required"`
	MatchID string `json:"matchId" validate:"required"`
}

type Output struct {
	*dealroom.CreateResult
}
