package consent

import (
	"time"

	"intent-broker/internal/models"
)

// Counterparty holds the identifying fields withheld until mutual consent.
type Counterparty struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Handle  string `json:"handle,omitempty"`
}

// MatchView is a match as one participant sees it. Counterparty is absent from
// the encoded form unless the status reveals identity.
type MatchView struct {
	MatchID                      string             `json:"matchId"`
	MyIntentID                   string             `json:"myIntentId"`
	CounterpartIntentID          string             `json:"counterpartIntentId"`
	Score                        float64            `json:"score"`
	Reason                       string             `json:"reason"`
	Status                       models.MatchStatus `json:"status"`
	MyConsent                    bool               `json:"myConsent"`
	CounterpartConsent           bool               `json:"counterpartConsent"`
	CounterpartyVerificationTier string             `json:"counterpartyVerificationTier,omitempty"`
	CounterpartyDealCount        int                `json:"counterpartyDealCount"`
	DealRoomID                   *string            `json:"dealRoomId,omitempty"`
	CreatedAt                    time.Time          `json:"createdAt"`
	Counterparty                 *Counterparty      `json:"counterparty,omitempty"`
}

// Project builds viewerID's view of m. other is the counterparty's profile and
// may be nil.
func Project(m *models.Match, viewerID string, other *models.Profile) MatchView {
	v := MatchView{
		MatchID:             m.ID,
		MyIntentID:          m.IntentOf(viewerID),
		CounterpartIntentID: m.IntentOf(m.OtherUserID(viewerID)),
		Score:               m.Score,
		Reason:              m.Reason,
		Status:              m.Status,
		DealRoomID:          m.DealRoomID,
		CreatedAt:           m.CreatedAt,
	}
	if viewerID == m.User1ID {
		v.MyConsent, v.CounterpartConsent = m.User1Consent, m.User2Consent
	} else {
		v.MyConsent, v.CounterpartConsent = m.User2Consent, m.User1Consent
	}

	if other == nil {
		return v
	}
	v.CounterpartyVerificationTier = other.VerificationTier
	v.CounterpartyDealCount = other.DealCount
	if RevealsIdentity(m.Status) {
		v.Counterparty = &Counterparty{
			Name:    other.Name,
			Company: other.Company,
			Handle:  other.Handle,
		}
	}
	return v
}
