// Package intents owns the intent lifecycle: validation, derived keywords and
// embeddings, persistence and the search index mirror.
package intents

import (
	"context"
	"strings"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/validation"
	"intent-broker/internal/matching/embedding"
	"intent-broker/internal/matching/keywords"
	"intent-broker/internal/models"
)

const defaultCurrency = "USD"

type Store interface {
	CreateIntent(ctx context.Context, in *models.Intent) error
	UpdateIntent(ctx context.Context, in *models.Intent) error
	GetIntentForUser(ctx context.Context, userID, intentID string) (*models.Intent, error)
	ListIntentsByUser(ctx context.Context, userID string) ([]*models.Intent, error)
}

type KeywordExtractor interface {
	Extract(ctx context.Context, in keywords.Input) []string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Indexer mirrors intents into the search index.
type Indexer interface {
	Index(ctx context.Context, in *models.Intent) error
}

type Service struct {
	store    Store
	keywords KeywordExtractor
	embedder Embedder
	index    Indexer
	logger   logger.Logger
}

// NewService wires the intent service. index may be nil when the search index is disabled.
func NewService(store Store, kw KeywordExtractor, embedder Embedder, index Indexer, log logger.Logger) *Service {
	return &Service{
		store:    store,
		keywords: kw,
		embedder: embedder,
		index:    index,
		logger:   log.WithFields(map[string]interface{}{"component": "intents"}),
	}
}

// Create validates the draft, applies defaults, derives keywords and the
// embedding, and stores a new active intent owned by userID.
func (s *Service) Create(ctx context.Context, userID string, draft models.IntentDraft) (*models.Intent, error) {
	if res := validation.Struct(draft); !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Error())
	}
	if err := checkRange(draft.MinValue, draft.MaxValue); err != nil {
		return nil, err
	}

	in := &models.Intent{
		UserID:          userID,
		Kind:            draft.Kind,
		Status:          models.IntentActive,
		Title:           strings.TrimSpace(draft.Title),
		Description:     strings.TrimSpace(draft.Description),
		AssetType:       draft.AssetType,
		AssetSubtype:    draft.AssetSubtype,
		MinValue:        draft.MinValue,
		MaxValue:        draft.MaxValue,
		Currency:        strings.ToUpper(draft.Currency),
		TargetLocations: draft.TargetLocations,
		TargetTimeline:  draft.TargetTimeline,
		IsAnonymous:     true,
		Visibility:      models.VisibilityVerified,
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if draft.IsAnonymous != nil {
		in.IsAnonymous = *draft.IsAnonymous
	}
	if draft.Visibility != nil {
		in.Visibility = *draft.Visibility
	}

	s.derive(ctx, in)

	if err := s.store.CreateIntent(ctx, in); err != nil {
		return nil, err
	}
	s.mirror(ctx, in)

	s.logger.Info("intent created", map[string]interface{}{
		"intentId":     in.ID,
		"kind":         in.Kind,
		"hasEmbedding": in.Embedding != nil,
	})
	return in, nil
}

// Update applies patch to an intent the caller owns. Keywords and the
// embedding are recomputed only when the title or description changed.
func (s *Service) Update(ctx context.Context, userID, intentID string, patch models.IntentPatch) (*models.Intent, error) {
	if res := validation.Struct(patch); !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Error())
	}

	in, err := s.store.GetIntentForUser(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}

	apply(in, patch)
	if err := checkRange(in.MinValue, in.MaxValue); err != nil {
		return nil, err
	}
	if patch.TextChanged() {
		s.derive(ctx, in)
	}

	if err := s.store.UpdateIntent(ctx, in); err != nil {
		return nil, err
	}
	s.mirror(ctx, in)

	s.logger.Info("intent updated", map[string]interface{}{
		"intentId":    in.ID,
		"status":      in.Status,
		"textChanged": patch.TextChanged(),
	})
	return in, nil
}

// ListMine returns the caller's intents, newest first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*models.Intent, error) {
	return s.store.ListIntentsByUser(ctx, userID)
}

func apply(in *models.Intent, p models.IntentPatch) {
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Title != nil {
		in.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		in.Description = strings.TrimSpace(*p.Description)
	}
	if p.AssetType != nil {
		in.AssetType = p.AssetType
	}
	if p.AssetSubtype != nil {
		in.AssetSubtype = p.AssetSubtype
	}
	if p.MinValue != nil {
		in.MinValue = p.MinValue
	}
	if p.MaxValue != nil {
		in.MaxValue = p.MaxValue
	}
	if p.Currency != nil {
		in.Currency = strings.ToUpper(*p.Currency)
	}
	if p.TargetLocations != nil {
		in.TargetLocations = p.TargetLocations
	}
	if p.TargetTimeline != nil {
		in.TargetTimeline = p.TargetTimeline
	}
	if p.IsAnonymous != nil {
		in.IsAnonymous = *p.IsAnonymous
	}
	if p.Visibility != nil {
		in.Visibility = *p.Visibility
	}
}

func checkRange(min, max *float64) error {
	if min != nil && max != nil && *min > *max {
		return apperrors.NewInvalidInputError("minValue: must not exceed maxValue")
	}
	return nil
}

// derive fills Keywords and Embedding. An embedding failure leaves the intent
// without a vector; it is then ranked by the fallback path.
func (s *Service) derive(ctx context.Context, in *models.Intent) {
	in.Keywords = s.keywords.Extract(ctx, keywords.Input{
		Kind:          string(in.Kind),
		Title:         in.Title,
		Description:   in.Description,
		AssetCategory: in.AssetCategory(),
	})

	vec, err := s.embedder.Embed(ctx, embedding.IntentText(in.Kind, in.Title, in.Description, in.AssetCategory()))
	if err != nil {
		s.logger.Warn("embedding unavailable, storing intent without vector", map[string]interface{}{
			"intentId": in.ID,
			"error":    err.Error(),
		})
		in.Embedding = nil
		return
	}
	in.Embedding = vec
}

func (s *Service) mirror(ctx context.Context, in *models.Intent) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, in); err != nil {
		s.logger.Warn("search index update failed", map[string]interface{}{
			"intentId": in.ID,
			"error":    err.Error(),
		})
	}
}
