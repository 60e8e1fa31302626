package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/models"

	"github.com/redis/go-redis/v9"
)

// PairScorer is what the match engine calls per candidate.
type PairScorer interface {
	Score(ctx context.Context, a, b *models.Intent) (*Verdict, error)
}

// CachedScorer remembers verdicts per unordered intent pair so repeated
// findMatches calls within the TTL do not re-score candidates already seen,
// including sub-threshold ones. An entry is ignored once either intent changed.
type CachedScorer struct {
	next   PairScorer
	cache  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedScorer(next PairScorer, cache redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedScorer {
	return &CachedScorer{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "verdict-cache"}),
	}
}

type cachedVerdict struct {
	Verdict
	Fingerprint string `json:"fingerprint"`
}

func (c *CachedScorer) Score(ctx context.Context, a, b *models.Intent) (*Verdict, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.next.Score(ctx, a, b)
	}

	key := VerdictKey(a.ID, b.ID)
	fp := fingerprint(a, b)

	if v, ok := c.lookup(ctx, key, fp); ok {
		return v, nil
	}

	v, err := c.next.Score(ctx, a, b)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cachedVerdict{Verdict: *v, Fingerprint: fp})
	if err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("verdict cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return v, nil
}

func (c *CachedScorer) lookup(ctx context.Context, key, fp string) (*Verdict, bool) {
	raw, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("verdict cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		metrics.CacheLookups.WithLabelValues("verdict", "miss").Inc()
		return nil, false
	}

	var cv cachedVerdict
	if err := json.Unmarshal(raw, &cv); err != nil || cv.Fingerprint != fp {
		metrics.CacheLookups.WithLabelValues("verdict", "stale").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("verdict", "hit").Inc()
	v := cv.Verdict
	v.Cached = true
	return &v, true
}

// VerdictKey is the Redis key for an unordered intent pair.
func VerdictKey(intentA, intentB string) string {
	lo, hi := models.PairKey(intentA, intentB)
	return fmt.Sprintf("match:verdict:%s:%s", lo, hi)
}

// fingerprint changes whenever either intent is edited.
func fingerprint(a, b *models.Intent) string {
	if a.ID > b.ID {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
}
