// internal/workers/intent/update-intent/models.go
package updateintent

import "intent-broker/internal/models"

type Input struct {
	UserID   string             `json:"userId" validate:"required"`
	IntentID string             `json:"intentId" validate:"required"`
	Patch    models.IntentPatch `json:"patch"`
}

type Output struct {
	Intent *models.Intent `json:"intent"`
}
