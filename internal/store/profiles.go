package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
)

const profilesQuery = `
SELECT u.id, u.name, u.company, u.handle, u.email, u.verification_tier, COALESCE(dp.deals, 0)
FROM users u
LEFT JOIN (
    SELECT user_id, COUNT(*) AS deals
    FROM deal_participants
    WHERE user_id = ANY($1)
    GROUP BY user_id
) dp ON dp.user_id = u.id
WHERE u.id = ANY($1)`

// GetProfiles returns the profiles of ids keyed by user ID. Unknown users are
// simply absent from the map.
func (q *queries) GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.q.QueryContext(ctx, profilesQuery, pq.Array(ids))
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("get_profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                      models.Profile
			company, handle, email sql.NullString
		)
		if err := rows.Scan(&p.UserID, &p.Name, &company, &handle, &email, &p.VerificationTier, &p.DealCount); err != nil {
			return nil, apperrors.NewDatabaseQueryError("get_profiles", err)
		}
		p.Company = company.String
		p.Handle = handle.String
		p.Email = email.String
		out[p.UserID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryError("get_profiles", err)
	}
	return out, nil
}

func (q *queries) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("notifications")
	ib.Cols("id", "user_id", "type", "title", "message", "related_entity_type", "related_entity_id", "created_at")
	ib.Values(n.ID, n.UserID, n.Kind, n.Title, n.Message, n.RelatedEntityType, n.RelatedEntityID, n.CreatedAt)

	query, args := ib.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("insert_notification", err)
	}
	return nil
}
