// internal/workers/dealroom/list-deal-room-documents/models.go
package listdealroomdocuments

import "intent-broker/internal/dealroom"

type Input struct {
	UserID     string `json:"userId" validate:"required"`
	DealRoomID string `json:"dealRoomId" validate:"required"`
}

type Output struct {
	*dealroom.DocumentList
	Count int `json:"count"`
}
