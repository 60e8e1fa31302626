// internal/workers/dealroom/get-deal-room/models.go
package getdealroom

import "intent-broker/internal/dealroom"

type Input struct {
	UserID     string `json:"userId" validate:"required"`
	DealRoomID string `json:"dealRoomId" validate:"required"`
}

type Output struct {
	*dealroom.RoomView
}
