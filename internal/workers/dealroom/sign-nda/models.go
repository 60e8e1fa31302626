// internal/workers/dealroom/sign-nda/models.go
package signnda

import "intent-broker/internal/dealroom"

type Input struct {
	UserID     string `json:"userId" validate:"required"`
	DealRoomID string `json:"dealRoomId" validate:"required"`
}

type Output struct {
	*dealroom.SignResult
}
