package search

import (
	"context"

	"intent-broker/internal/common/logger"
	"intent-broker/internal/matching/embedding"
	"intent-broker/internal/models"
)

// IntentLister is the Postgres side of candidate retrieval.
type IntentLister interface {
	ListActiveCandidates(ctx context.Context, excludeUser string, limit int) ([]*models.Intent, error)
	GetActiveIntentsByIDs(ctx context.Context, ids []string, excludeUser string) ([]*models.Intent, error)
}

// VectorIndex is the kNN side; IntentIndex satisfies it.
type VectorIndex interface {
	Similar(ctx context.Context, vector []float64, excludeUser string, size int) ([]string, error)
}

// Candidates loads the pool of intents a source intent is ranked against.
// With an index configured and a usable source embedding, the pool is the kNN
// prefetch; otherwise, or when the index fails, it is the newest active
// intents from Postgres.
type Candidates struct {
	store     IntentLister
	index     VectorIndex
	pool      int
	dimension int
	logger    logger.Logger
}

// NewCandidates builds a candidate source. index may be nil.
func NewCandidates(store IntentLister, index VectorIndex, pool, dimension int, log logger.Logger) *Candidates {
	return &Candidates{
		store:     store,
		index:     index,
		pool:      pool,
		dimension: dimension,
		logger:    log.WithFields(map[string]interface{}{"component": "candidates"}),
	}
}

func (c *Candidates) Candidates(ctx context.Context, source *models.Intent) ([]*models.Intent, error) {
	if c.index != nil && embedding.Available(source.Embedding, c.dimension) {
		found, err := c.fromIndex(ctx, source)
		if err == nil {
			return found, nil
		}
		c.logger.Warn("vector prefetch failed, falling back to postgres", map[string]interface{}{
			"intentId": source.ID,
			"error":    err.Error(),
		})
	}
	return c.store.ListActiveCandidates(ctx, source.UserID, c.pool)
}

func (c *Candidates) fromIndex(ctx context.Context, source *models.Intent) ([]*models.Intent, error) {
	ids, err := c.index.Similar(ctx, source.Embedding, source.UserID, c.pool)
	if err != nil {
		return nil, err
	}
	return c.store.GetActiveIntentsByIDs(ctx, ids, source.UserID)
}
