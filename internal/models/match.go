// internal/models/match.go
package models

import "time"

type MatchStatus string

const (
	MatchPending         MatchStatus = "pending"
	MatchUser1Interested MatchStatus = "user1_interested"
	MatchUser2Interested MatchStatus = "user2_interested"
	MatchMutualInterest  MatchStatus = "mutual_interest"
	MatchDealRoomCreated MatchStatus = "deal_room_created"
	MatchDeclined        MatchStatus = "declined"
)

// Match pairs two intents of different users. IntentA/User1 is always the side
// whose findMatches call created the record.
type Match struct {
	ID           string      `json:"id"`
	IntentAID    string      `json:"intentAId"`
	IntentBID    string      `json:"intentBId"`
	User1ID      string      `json:"user1Id"`
	User2ID      string      `json:"user2Id"`
	Score        float64     `json:"score"`
	Reason       string      `json:"reason"`
	Status       MatchStatus `json:"status"`
	User1Consent bool        `json:"user1Consent"`
	User1At      *time.Time  `json:"user1ConsentAt,omitempty"`
	User2Consent bool        `json:"user2Consent"`
	User2At      *time.Time  `json:"user2ConsentAt,omitempty"`
	DealRoomID   *string     `json:"dealRoomId,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// HasUser reports whether userID is one of the two participants.
func (m *Match) HasUser(userID string) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// OtherUserID returns the participant that is not userID.
func (m *Match) OtherUserID(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// IntentOf returns the intent owned by userID in this match.
func (m *Match) IntentOf(userID string) string {
	if m.User1ID == userID {
		return m.IntentAID
	}
	return m.IntentBID
}

// PairKey orders two intent IDs so (a, b) and (b, a) map to the same key.
func PairKey(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}
