// internal/workers/intent/create-intent/models.go
package createintent

import "intent-broker/internal/models"

type Input struct {
	UserID string             `json:"userId" validate:"required"`
	Intent models.IntentDraft `json:"intent"`
}

type Output struct {
	Intent *models.Intent `json:"intent"`
}
