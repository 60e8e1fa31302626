package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

var dealRoomCols = []string{
	"id", "match_id", "name", "description", "nda_required", "nda_template_id", "settings", "created_by", "created_at",
}

var accessCols = []string{
	"deal_room_id", "user_id", "access_level", "nda_signed", "nda_signed_at", "nda_document_id", "expires_at", "granted_at",
}

var documentCols = []string{
	"id", "deal_room_id", "name", "category", "file_key", "file_url", "mime_type", "size_bytes", "uploaded_by", "created_at",
}

func scanDealRoom(s scanner) (*models.DealRoom, error) {
	var (
		room     models.DealRoom
		settings []byte
	)
	err := s.Scan(&room.ID, &room.MatchID, &room.Name, &room.Description, &room.NDARequired,
		&room.NDATemplateID, &settings, &room.CreatedBy, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &room.Settings); err != nil {
			return nil, err
		}
	}
	return &room, nil
}

func scanAccess(s scanner) (*models.DealRoomAccess, error) {
	var a models.DealRoomAccess
	err := s.Scan(&a.DealRoomID, &a.UserID, &a.Level, &a.NDASigned, &a.NDASignedAt,
		&a.NDADocumentID, &a.ExpiresAt, &a.GrantedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) getDealRoom(ctx context.Context, op, col, value string) (*models.DealRoom, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(dealRoomCols...)
	sb.From("deal_rooms")
	sb.Where(sb.Equal(col, value))

	query, args := sb.Build()
	room, err := scanDealRoom(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("dealRoom", value)
		}
		return nil, apperrors.NewDatabaseQueryError(op, err)
	}
	return room, nil
}

func (q *queries) GetDealRoom(ctx context.Context, roomID string) (*models.DealRoom, error) {
	return q.getDealRoom(ctx, "get_deal_room", "id", roomID)
}

func (q *queries) GetDealRoomByMatch(ctx context.Context, matchID string) (*models.DealRoom, error) {
	return q.getDealRoom(ctx, "get_deal_room_by_match", "match_id", matchID)
}

// InsertDealRoom fails on a second room for the same match via the unique match_id.
func (q *queries) InsertDealRoom(ctx context.Context, room *models.DealRoom) error {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	settings, err := marshalSettings(room.Settings)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("deal_rooms")
	ib.Cols(dealRoomCols...)
	ib.Values(room.ID, room.MatchID, room.Name, room.Description, room.NDARequired,
		room.NDATemplateID, string(settings), room.CreatedBy, room.CreatedAt)

	query, args := ib.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("insert_deal_room", err)
	}
	return nil
}

func (q *queries) GrantAccess(ctx context.Context, a *models.DealRoomAccess) error {
	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("deal_room_access")
	ib.Cols(accessCols...)
	ib.Values(a.DealRoomID, a.UserID, string(a.Level), a.NDASigned, a.NDASignedAt,
		a.NDADocumentID, a.ExpiresAt, a.GrantedAt)

	query, args := ib.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("grant_access", err)
	}
	return nil
}

// GetAccess returns userID's access to a room. No row is a not-found on the room
// so callers learn nothing about rooms they were never granted.
func (q *queries) GetAccess(ctx context.Context, roomID, userID string) (*models.DealRoomAccess, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(accessCols...)
	sb.From("deal_room_access")
	sb.Where(sb.Equal("deal_room_id", roomID), sb.Equal("user_id", userID))

	query, args := sb.Build()
	a, err := scanAccess(q.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("dealRoom", roomID)
		}
		return nil, apperrors.NewDatabaseQueryError("get_access", err)
	}
	return a, nil
}

// ListDealRoomsForUser returns every room userID holds a grant on, newest
// first, each with that grant.
func (q *queries) ListDealRoomsForUser(ctx context.Context, userID string) ([]*models.DealRoomMembership, error) {
	cols := make([]string, 0, len(dealRoomCols)+len(accessCols))
	for _, c := range dealRoomCols {
		cols = append(cols, "r."+c)
	}
	for _, c := range accessCols {
		cols = append(cols, "a."+c)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(cols...)
	sb.From("deal_rooms r")
	sb.Join("deal_room_access a", "a.deal_room_id = r.id")
	sb.Where(sb.Equal("a.user_id", userID))
	sb.OrderBy("r.created_at DESC")

	query, args := sb.Build()
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_deal_rooms", err)
	}
	defer rows.Close()

	out := make([]*models.DealRoomMembership, 0)
	for rows.Next() {
		var (
			m        models.DealRoomMembership
			settings []byte
		)
		r, a := &m.DealRoom, &m.Access
		err := rows.Scan(&r.ID, &r.MatchID, &r.Name, &r.Description, &r.NDARequired,
			&r.NDATemplateID, &settings, &r.CreatedBy, &r.CreatedAt,
			&a.DealRoomID, &a.UserID, &a.Level, &a.NDASigned, &a.NDASignedAt,
			&a.NDADocumentID, &a.ExpiresAt, &a.GrantedAt)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryError("list_deal_rooms", err)
		}
		if len(settings) > 0 {
			if err := json.Unmarshal(settings, &r.Settings); err != nil {
				return nil, apperrors.NewDatabaseQueryError("list_deal_rooms", err)
			}
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_deal_rooms", err)
	}
	return out, nil
}

// LockAccess locks every access row of the room in user order.
func (q *queries) LockAccess(ctx context.Context, roomID string) ([]*models.DealRoomAccess, error) {
	query := "SELECT " + strings.Join(accessCols, ", ") +
		" FROM deal_room_access WHERE deal_room_id = $1 ORDER BY user_id FOR UPDATE"

	rows, err := q.q.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("lock_access", err)
	}
	defer rows.Close()

	out := make([]*models.DealRoomAccess, 0, 2)
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryError("lock_access", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryError("lock_access", err)
	}
	return out, nil
}

func (q *queries) SaveAccess(ctx context.Context, a *models.DealRoomAccess) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("deal_room_access")
	ub.Set(
		ub.Assign("nda_signed", a.NDASigned),
		ub.Assign("nda_signed_at", a.NDASignedAt),
		ub.Assign("nda_document_id", a.NDADocumentID),
	)
	ub.Where(ub.Equal("deal_room_id", a.DealRoomID), ub.Equal("user_id", a.UserID))

	query, args := ub.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("save_access", err)
	}
	return nil
}

func (q *queries) InsertDocument(ctx context.Context, d *models.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("documents")
	ib.Cols(documentCols...)
	ib.Values(d.ID, d.DealRoomID, d.Name, string(d.Category), d.FileKey, d.FileURL, d.MimeType,
		d.SizeBytes, d.UploadedBy, d.CreatedAt)

	query, args := ib.Build()
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseWriteError("insert_document", err)
	}
	return nil
}

// FindDocumentID returns the newest document of category in the room, or nil.
func (q *queries) FindDocumentID(ctx context.Context, roomID string, category models.DocumentCategory) (*string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From("documents")
	sb.Where(sb.Equal("deal_room_id", roomID), sb.Equal("category", string(category)))
	sb.OrderBy("created_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var id string
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseQueryError("find_document", err)
	}
	return &id, nil
}

// ListDocuments returns every document of the room, newest first. Visibility
// filtering is the caller's job.
func (q *queries) ListDocuments(ctx context.Context, roomID string) ([]*models.Document, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(documentCols...)
	sb.From("documents")
	sb.Where(sb.Equal("deal_room_id", roomID))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_documents", err)
	}
	defer rows.Close()

	out := make([]*models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.DealRoomID, &d.Name, &d.Category, &d.FileKey, &d.FileURL,
			&d.MimeType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseQueryError("list_documents", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryError("list_documents", err)
	}
	return out, nil
}

// GetDefaultNDATemplate returns the default template, or nil when none is configured.
func (q *queries) GetDefaultNDATemplate(ctx context.Context) (*models.NDATemplate, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "content", "jurisdiction")
	sb.From("nda_templates")
	sb.Where(sb.Equal("is_default", true))
	sb.Limit(1)

	query, args := sb.Build()
	var t models.NDATemplate
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Name, &t.Content, &t.Jurisdiction); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseQueryError("get_nda_template", err)
	}
	return &t, nil
}
