// internal/workers/matching/find-matches/models.go
package findmatches

import "intent-broker/internal/matching/engine"

type Input struct {
	UserID   string `json:"userId" validate:"required"`
	IntentID string `json:"intentId" validate:"required"`
}

type Output struct {
	*engine.Result
}
