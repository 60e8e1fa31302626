// internal/workers/intent/list-my-intents/models.go
package listmyintents

import "intent-broker/internal/models"

type Input struct {
	UserID string `json:"userId" validate:"required"`
}

type Output struct {
	Intents []*models.Intent `json:"intents"`
	Count   int              `json:"count"`
}
