// internal/workers/dealroom/list-my-deal-rooms/models.go
package listmydealrooms

import "intent-broker/internal/models"

type Input struct {
	UserID string `json:"userId" validate:"required"`
}

type Output struct {
	DealRooms []*models.DealRoomMembership `json:"dealRooms"`
	Count     int                          `json:"count"`
}
