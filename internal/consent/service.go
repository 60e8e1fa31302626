package consent

import (
	"context"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/common/observability"
	"intent-broker/internal/models"
	"intent-broker/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

type Store interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error
	ListMatchesForUser(ctx context.Context, userID string) ([]*models.Match, error)
	GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type InterestResult struct {
	Match            MatchView `json:"match"`
	AlreadyConsented bool      `json:"alreadyConsented"`
}

type DeclineResult struct {
	Match           MatchView `json:"match"`
	AlreadyDeclined bool      `json:"alreadyDeclined"`
}

type Service struct {
	store    Store
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "consent"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ExpressInterest sets the caller's consent slot under a row lock. Calling it
// again after consenting returns the current state with no side effects.
func (s *Service) ExpressInterest(ctx context.Context, userID, matchID string) (*InterestResult, error) {
	ctx, span := observability.StartSpan(ctx, "consent.ExpressInterest", attribute.String("match.id", matchID))
	defer span.End()

	var (
		m       *models.Match
		from    models.MatchStatus
		already bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = lockParticipant(ctx, tx, userID, matchID)
		if err != nil {
			return err
		}
		slot, _ := SlotOf(m, userID)

		next, err := Transition(m.Status, EventInterest, slot)
		if err != nil {
			return err
		}
		if consented(m, slot) {
			already = true
			return nil
		}

		now := s.now()
		if slot == SlotUser1 {
			m.User1Consent, m.User1At = true, &now
		} else {
			m.User2Consent, m.User2At = true, &now
		}
		from, m.Status = m.Status, next
		return tx.SaveMatchState(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if !already {
		s.transitioned(ctx, m, userID, from)
	}

	view, err := s.view(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	return &InterestResult{Match: view, AlreadyConsented: already}, nil
}

// Decline moves the match to declined. Declining an already declined match is a no-op.
func (s *Service) Decline(ctx context.Context, userID, matchID string) (*DeclineResult, error) {
	ctx, span := observability.StartSpan(ctx, "consent.Decline", attribute.String("match.id", matchID))
	defer span.End()

	var (
		m       *models.Match
		from    models.MatchStatus
		already bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		m, err = lockParticipant(ctx, tx, userID, matchID)
		if err != nil {
			return err
		}
		slot, _ := SlotOf(m, userID)

		next, err := Transition(m.Status, EventDecline, slot)
		if err != nil {
			return err
		}
		if m.Status == next {
			already = true
			return nil
		}
		from, m.Status = m.Status, next
		return tx.SaveMatchState(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if !already {
		s.transitioned(ctx, m, userID, from)
	}

	view, err := s.view(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	return &DeclineResult{Match: view, AlreadyDeclined: already}, nil
}

// ListMine returns the caller's matches through the identity-blind projection.
func (s *Service) ListMine(ctx context.Context, userID string) ([]MatchView, error) {
	matches, err := s.store.ListMatchesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		other := m.OtherUserID(userID)
		if !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, Project(m, userID, profiles[m.OtherUserID(userID)]))
	}
	return views, nil
}

func lockParticipant(ctx context.Context, tx store.Tx, userID, matchID string) (*models.Match, error) {
	m, err := tx.LockMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasUser(userID) {
		return nil, apperrors.NewNotFoundError("match", matchID)
	}
	return m, nil
}

func consented(m *models.Match, slot Slot) bool {
	if slot == SlotUser1 {
		return m.User1Consent
	}
	return m.User2Consent
}

func (s *Service) view(ctx context.Context, m *models.Match, userID string) (MatchView, error) {
	other := m.OtherUserID(userID)
	profiles, err := s.profiles(ctx, []string{other})
	if err != nil {
		return MatchView{}, err
	}
	return Project(m, userID, profiles[other]), nil
}

func (s *Service) profiles(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	if len(ids) == 0 {
		return map[string]*models.Profile{}, nil
	}
	return s.store.GetProfiles(ctx, ids)
}

// transitioned records a committed status change and tells the counterparty.
func (s *Service) transitioned(ctx context.Context, m *models.Match, actorID string, from models.MatchStatus) {
	metrics.ConsentTransitions.WithLabelValues(string(from), string(m.Status)).Inc()
	s.logger.Info("match status changed", map[string]interface{}{
		"matchId": m.ID,
		"from":    from,
		"to":      m.Status,
	})

	if s.notifier == nil {
		return
	}
	n := models.Notification{
		UserID:            m.OtherUserID(actorID),
		RelatedEntityType: "match",
		RelatedEntityID:   m.ID,
	}
	switch m.Status {
	case models.MatchUser1Interested, models.MatchUser2Interested:
		n.Kind = models.NotifyMatchInterest
		n.Title = "New Match Interest"
		n.Message = "Someone has expressed interest in your intent match."
	case models.MatchMutualInterest:
		n.Kind = models.NotifyMutualInterest
		n.Title = "Mutual Interest Confirmed"
		n.Message = "Both parties are interested. Identities are now visible and a deal room can be opened."
	case models.MatchDeclined:
		n.Kind = models.NotifyMatchDeclined
		n.Title = "Match Declined"
		n.Message = "A match you were part of has been declined."
	default:
		return
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("consent notification failed", map[string]interface{}{
			"matchId": m.ID,
			"kind":    n.Kind,
			"error":   err.Error(),
		})
	}
}
