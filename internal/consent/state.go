// Package consent implements the mutual-consent state machine over matches and
// the identity-blind read projection.
package consent

import (
	"fmt"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"
)

type Event string

const (
	EventInterest Event = "interest"
	EventDecline  Event = "decline"
)

// Slot is the consent slot a participant owns on a match.
type Slot int

const (
	SlotUser1 Slot = iota + 1
	SlotUser2
)

// SlotOf returns the caller's slot, or false when they are not a participant.
func SlotOf(m *models.Match, userID string) (Slot, bool) {
	switch userID {
	case m.User1ID:
		return SlotUser1, true
	case m.User2ID:
		return SlotUser2, true
	default:
		return 0, false
	}
}

func IsTerminal(s models.MatchStatus) bool {
	return s == models.MatchDeclined || s == models.MatchDealRoomCreated
}

// RevealsIdentity reports whether participants may see each other's identity.
func RevealsIdentity(s models.MatchStatus) bool {
	return s == models.MatchMutualInterest || s == models.MatchDealRoomCreated
}

// Transition returns the status after slot applies ev to a match in status s.
// Applying interest a second time from the same slot leaves the status as is.
func Transition(s models.MatchStatus, ev Event, slot Slot) (models.MatchStatus, error) {
	if slot != SlotUser1 && slot != SlotUser2 {
		return s, apperrors.NewInternalError(fmt.Errorf("unknown consent slot %d", slot))
	}

	switch ev {
	case EventInterest:
		return interest(s, slot)
	case EventDecline:
		return decline(s)
	default:
		return s, apperrors.NewInternalError(fmt.Errorf("unknown consent event %q", ev))
	}
}

func interest(s models.MatchStatus, slot Slot) (models.MatchStatus, error) {
	switch s {
	case models.MatchPending:
		if slot == SlotUser1 {
			return models.MatchUser1Interested, nil
		}
		return models.MatchUser2Interested, nil

	case models.MatchUser1Interested:
		if slot == SlotUser1 {
			return s, nil
		}
		return models.MatchMutualInterest, nil

	case models.MatchUser2Interested:
		if slot == SlotUser2 {
			return s, nil
		}
		return models.MatchMutualInterest, nil

	case models.MatchMutualInterest:
		return s, nil

	case models.MatchDeclined, models.MatchDealRoomCreated:
		return s, apperrors.NewPreconditionFailedError(
			fmt.Sprintf("Match is %s and no longer accepts interest", s),
			"pending|user1_interested|user2_interested|mutual_interest", string(s))

	default:
		return s, apperrors.NewInternalError(fmt.Errorf("unknown match status %q", s))
	}
}

func decline(s models.MatchStatus) (models.MatchStatus, error) {
	switch s {
	case models.MatchPending, models.MatchUser1Interested, models.MatchUser2Interested,
		models.MatchMutualInterest, models.MatchDeclined:
		return models.MatchDeclined, nil

	case models.MatchDealRoomCreated:
		return s, apperrors.NewPreconditionFailedError(
			"Match already has a deal room and can no longer be declined",
			"pending|user1_interested|user2_interested|mutual_interest", string(s))

	default:
		return s, apperrors.NewInternalError(fmt.Errorf("unknown match status %q", s))
	}
}
