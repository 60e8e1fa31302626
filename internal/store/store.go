// Package store is the Postgres persistence layer for intents, matches, deal
// rooms and their documents.
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// Tx is the set of operations that must run under one transaction: the
// consent read-modify-write and deal room provisioning.
type Tx interface {
	LockMatch(ctx context.Context, matchID string) (*models.Match, error)
	SaveMatchState(ctx context.Context, m *models.Match) error

	GetDealRoom(ctx context.Context, roomID string) (*models.DealRoom, error)
	GetDealRoomByMatch(ctx context.Context, matchID string) (*models.DealRoom, error)
	InsertDealRoom(ctx context.Context, room *models.DealRoom) error
	GrantAccess(ctx context.Context, access *models.DealRoomAccess) error
	LockAccess(ctx context.Context, roomID string) ([]*models.DealRoomAccess, error)
	SaveAccess(ctx context.Context, access *models.DealRoomAccess) error
	InsertDocument(ctx context.Context, doc *models.Document) error
	FindDocumentID(ctx context.Context, roomID string, category models.DocumentCategory) (*string, error)
}

type queries struct {
	q querier
}

type Store struct {
	db *sql.DB
	queries
}

func New(db *sql.DB) *Store {
	return &Store{db: db, queries: queries{q: db}}
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseWriteError("begin_tx", err)
	}

	if err := fn(&queries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseWriteError("commit_tx", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func marshalSettings(s models.DealRoomSettings) ([]byte, error) {
	return json.Marshal(s)
}
