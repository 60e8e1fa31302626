package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

var matchCols = []string{
	"id", "intent_a_id", "intent_b_id", "user1_id", "user2_id", "score", "reason", "status",
	"user1_consent", "user1_consent_at", "user2_consent", "user2_consent_at", "deal_room_id",
	"created_at", "updated_at",
}

func scanMatch(s scanner) (*models.Match, error) {
	var m models.Match
	err := s.Scan(
		&m.ID, &m.IntentAID, &m.IntentBID, &m.User1ID, &m.User2ID, &m.Score, &m.Reason, &m.Status,
		&m.User1Consent, &m.User1At, &m.User2Consent, &m.User2At, &m.DealRoomID,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMatchByPair returns the match for the unordered pair, or nil when none exists.
func (q *queries) FindMatchByPair(ctx context.Context, intentA, intentB string) (*models.Match, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(matchCols...)
	sb.From("matches")
	sb.Where(sb.Or(
		sb.And(sb.Equal("intent_a_id", intentA), sb.Equal("intent_b_id", intentB)),
		sb.And(sb.Equal("intent_a_id", intentB), sb.Equal("intent_b_id", intentA)),
	))
	sb.Limit(1)

	query, args := sb.Build()
	m, err := scanMatch(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseQueryError("find_match_by_pair", err)
	}
	return m, nil
}

// CreateMatchIfAbsent inserts m unless a match for the unordered pair already
// exists. The unique pair index decides races; created is false when another
// writer got there first.
func (q *queries) CreateMatchIfAbsent(ctx context.Context, m *models.Match) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = models.MatchPending
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("matches")
	ib.Cols("id", "intent_a_id", "intent_b_id", "user1_id", "user2_id", "score", "reason", "status",
		"user1_consent", "user2_consent", "created_at", "updated_at")
	ib.Values(m.ID, m.IntentAID, m.IntentBID, m.User1ID, m.User2ID, m.Score, m.Reason, string(m.Status),
		m.User1Consent, m.User2Consent, m.CreatedAt, m.UpdatedAt)

	query, args := ib.Build()
	query += " ON CONFLICT DO NOTHING RETURNING id"

	var id string
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.NewDatabaseWriteError("create_match", err)
	}
	return true, nil
}

// ListMatchesForUser returns matches where userID is either participant, newest first.
func (q *queries) ListMatchesForUser(ctx context.Context, userID string) ([]*models.Match, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(matchCols...)
	sb.From("matches")
	sb.Where(sb.Or(sb.Equal("user1_id", userID), sb.Equal("user2_id", userID)))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_matches", err)
	}
	defer rows.Close()

	out := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryError("list_matches", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_matches", err)
	}
	return out, nil
}

// GetMatch reads a match without locking it.
func (q *queries) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	query := "SELECT " + strings.Join(matchCols, ", ") + " FROM matches WHERE id = $1"

	m, err := scanMatch(q.q.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("match", matchID)
		}
		return nil, apperrors.NewDatabaseQueryError("get_match", err)
	}
	return m, nil
}

// LockMatch reads a match and holds its row lock until the transaction ends.
func (q *queries) LockMatch(ctx context.Context, matchID string) (*models.Match, error) {
	query := "SELECT " + strings.Join(matchCols, ", ") + " FROM matches WHERE id = $1 FOR UPDATE"

	m, err := scanMatch(q.q.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("match", matchID)
		}
		return nil, apperrors.NewDatabaseQueryError("lock_match", err)
	}
	return m, nil
}

// SaveMatchState writes the consent-owned columns of m.
func (q *queries) SaveMatchState(ctx context.Context, m *models.Match) error {
	m.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("matches")
	ub.Set(
		ub.Assign("status", string(m.Status)),
		ub.Assign("user1_consent", m.User1Consent),
		ub.Assign("user1_consent_at", m.User1At),
		ub.Assign("user2_consent", m.User2Consent),
		ub.Assign("user2_consent_at", m.User2At),
		ub.Assign("deal_room_id", m.DealRoomID),
		ub.Assign("updated_at", m.UpdatedAt),
	)
	ub.Where(ub.Equal("id", m.ID))

	query, args := ub.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("save_match", err)
	}
	return nil
}
