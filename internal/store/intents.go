package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
)

var intentCols = []string{
	"id", "user_id", "kind", "status", "title", "description", "asset_type", "asset_subtype",
	"min_value", "max_value", "currency", "target_locations", "target_timeline", "is_anonymous",
	"visibility", "keywords", "embedding", "created_at", "updated_at",
}

func scanIntent(s scanner) (*models.Intent, error) {
	var (
		in           models.Intent
		assetType    sql.NullString
		assetSubtype sql.NullString
		timeline     sql.NullString
		minValue     sql.NullFloat64
		maxValue     sql.NullFloat64
		locations    pq.StringArray
		keywords     pq.StringArray
		embedding    pq.Float64Array
	)
	err := s.Scan(
		&in.ID, &in.UserID, &in.Kind, &in.Status, &in.Title, &in.Description, &assetType, &assetSubtype,
		&minValue, &maxValue, &in.Currency, &locations, &timeline, &in.IsAnonymous,
		&in.Visibility, &keywords, &embedding, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assetType.Valid {
		at := models.AssetType(assetType.String)
		in.AssetType = &at
	}
	if assetSubtype.Valid {
		in.AssetSubtype = &assetSubtype.String
	}
	if timeline.Valid {
		in.TargetTimeline = &timeline.String
	}
	if minValue.Valid {
		in.MinValue = &minValue.Float64
	}
	if maxValue.Valid {
		in.MaxValue = &maxValue.Float64
	}
	in.TargetLocations = []string(locations)
	in.Keywords = []string(keywords)
	if embedding != nil {
		in.Embedding = []float64(embedding)
	}
	return &in, nil
}

func scanIntents(rows *sql.Rows) ([]*models.Intent, error) {
	defer rows.Close()
	out := make([]*models.Intent, 0)
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// embeddingArg stores a missing embedding as NULL.
func embeddingArg(v []float64) interface{} {
	if len(v) == 0 {
		return nil
	}
	return pq.Float64Array(v)
}

// CreateIntent inserts in, assigning an ID and timestamps when unset.
func (q *queries) CreateIntent(ctx context.Context, in *models.Intent) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = in.CreatedAt

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("intents")
	ib.Cols(intentCols...)
	ib.Values(
		in.ID, in.UserID, string(in.Kind), string(in.Status), in.Title, in.Description, in.AssetType, in.AssetSubtype,
		in.MinValue, in.MaxValue, in.Currency, pq.Array(nonNil(in.TargetLocations)), in.TargetTimeline, in.IsAnonymous,
		string(in.Visibility), pq.Array(nonNil(in.Keywords)), embeddingArg(in.Embedding), in.CreatedAt, in.UpdatedAt,
	)

	query, args := ib.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("create_intent", err)
	}
	return nil
}

// UpdateIntent writes every mutable column of in and bumps updated_at.
func (q *queries) UpdateIntent(ctx context.Context, in *models.Intent) error {
	in.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("intents")
	ub.Set(
		ub.Assign("status", string(in.Status)),
		ub.Assign("title", in.Title),
		ub.Assign("description", in.Description),
		ub.Assign("asset_type", in.AssetType),
		ub.Assign("asset_subtype", in.AssetSubtype),
		ub.Assign("min_value", in.MinValue),
		ub.Assign("max_value", in.MaxValue),
		ub.Assign("currency", in.Currency),
		ub.Assign("target_locations", pq.Array(nonNil(in.TargetLocations))),
		ub.Assign("target_timeline", in.TargetTimeline),
		ub.Assign("is_anonymous", in.IsAnonymous),
		ub.Assign("visibility", string(in.Visibility)),
		ub.Assign("keywords", pq.Array(nonNil(in.Keywords))),
		ub.Assign("embedding", embeddingArg(in.Embedding)),
		ub.Assign("updated_at", in.UpdatedAt),
	)
	ub.Where(ub.Equal("id", in.ID), ub.Equal("user_id", in.UserID))

	query, args := ub.Build()
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewDatabaseWriteError("update_intent", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("intent", in.ID)
	}
	return nil
}

// GetIntentForUser loads an intent owned by userID. Missing and foreign intents
// are the same not-found error.
func (q *queries) GetIntentForUser(ctx context.Context, userID, intentID string) (*models.Intent, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(intentCols...)
	sb.From("intents")
	sb.Where(sb.Equal("id", intentID), sb.Equal("user_id", userID))

	query, args := sb.Build()
	in, err := scanIntent(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("intent", intentID)
		}
		return nil, apperrors.NewDatabaseQueryError("get_intent", err)
	}
	return in, nil
}

// ListIntentsByUser returns the owner's intents, newest first.
func (q *queries) ListIntentsByUser(ctx context.Context, userID string) ([]*models.Intent, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(intentCols...)
	sb.From("intents")
	sb.Where(sb.Equal("user_id", userID))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_intents", err)
	}
	out, err := scanIntents(rows)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_intents", err)
	}
	return out, nil
}

// ListActiveCandidates returns active intents of everyone except excludeUser,
// newest first.
func (q *queries) ListActiveCandidates(ctx context.Context, excludeUser string, limit int) ([]*models.Intent, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(intentCols...)
	sb.From("intents")
	sb.Where(
		sb.Equal("status", string(models.IntentActive)),
		sb.NotEqual("user_id", excludeUser),
	)
	sb.OrderBy("created_at DESC")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_candidates", err)
	}
	out, err := scanIntents(rows)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_candidates", err)
	}
	return out, nil
}

// GetActiveIntentsByIDs loads the given intents that are still active and not
// owned by excludeUser, preserving the order of ids.
func (q *queries) GetActiveIntentsByIDs(ctx context.Context, ids []string, excludeUser string) ([]*models.Intent, error) {
	if len(ids) == 0 {
		return []*models.Intent{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(intentCols...)
	sb.From("intents")
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.Equal("status", string(models.IntentActive)),
		sb.NotEqual("user_id", excludeUser),
	)

	query, args := sb.Build()
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("get_intents", err)
	}
	found, err := scanIntents(rows)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("get_intents", err)
	}

	byID := make(map[string]*models.Intent, len(found))
	for _, in := range found {
		byID[in.ID] = in
	}
	out := make([]*models.Intent, 0, len(found))
	for _, id := range ids {
		if in, ok := byID[id]; ok {
			out = append(out, in)
		}
	}
	return out, nil
}
