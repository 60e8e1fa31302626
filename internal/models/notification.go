// internal/models/notification.go
package models

import "time"

const (
	NotifyMatchFound      = "match_found"
	NotifyMatchInterest   = "match_interest"
	NotifyMutualInterest  = "mutual_interest"
	NotifyMatchDeclined   = "match_declined"
	NotifyDealRoomCreated = "deal_room_created"
	NotifyNDASigned       = "nda_signed"
)

type Notification struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Kind              string    `json:"type"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	RelatedEntityType string    `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string    `json:"relatedEntityId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}
