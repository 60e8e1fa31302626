// Package embedding turns intent text into fixed-length vectors via the GenAI
// gateway, with a Redis read-through cache.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidEmbedding = errors.New("invalid embedding")

// Backend is the raw embedding call; genai.Client satisfies it.
type Backend interface {
	Embeddings(ctx context.Context, input string, dimensions int) ([]float64, error)
}

type Config struct {
	Dimension     int
	MaxInputChars int
	Timeout       time.Duration
	CacheTTL      time.Duration
}

type Client struct {
	config  Config
	backend Backend
	cache   redis.Cmdable
	logger  logger.Logger
}

// NewClient builds an embedding client. cache may be nil.
func NewClient(config Config, backend Backend, cache redis.Cmdable, log logger.Logger) *Client {
	return &Client{
		config:  config,
		backend: backend,
		cache:   cache,
		logger:  log.WithFields(map[string]interface{}{"component": "embedding"}),
	}
}

// Embed returns the vector for text. Blank text yields a zero vector without a
// network call; any backend or shape failure is returned as an error that
// callers treat as "no embedding".
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = Normalize(text, c.config.MaxInputChars)
	if text == "" {
		return make([]float64, c.config.Dimension), nil
	}

	key := cacheKey(text, c.config.Dimension)
	if vec, ok := c.fromCache(ctx, key); ok {
		return vec, nil
	}

	callCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := c.backend.Embeddings(callCtx, text, c.config.Dimension)
	if err != nil {
		metrics.UpstreamDuration.WithLabelValues("embedding", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("embed: %w", err)
	}
	metrics.UpstreamDuration.WithLabelValues("embedding", "ok").Observe(time.Since(start).Seconds())

	if err := Validate(vec, c.config.Dimension); err != nil {
		return nil, err
	}

	c.toCache(ctx, key, vec)
	return vec, nil
}

// Validate checks length and that every entry is finite and within [-1, 1].
func Validate(vec []float64, dimension int) error {
	if len(vec) != dimension {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbedding, len(vec), dimension)
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < -1 || v > 1 {
			return fmt.Errorf("%w: entry %d out of range (%v)", ErrInvalidEmbedding, i, v)
		}
	}
	return nil
}

// Available reports whether vec can drive semantic ranking.
func Available(vec []float64, dimension int) bool {
	if len(vec) != dimension || dimension == 0 {
		return false
	}
	for _, v := range vec {
		if v != 0 {
			return true
		}
	}
	return false
}

// IntentText builds the embedding input for an intent.
func IntentText(kind models.IntentKind, title, description, assetCategory string) string {
	parts := []string{string(kind), title, description}
	if assetCategory != "" {
		parts = append(parts, assetCategory)
	}
	return strings.Join(parts, " ")
}

// Normalize trims, collapses whitespace, and truncates to maxChars runes.
func Normalize(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	if maxChars > 0 {
		if r := []rune(text); len(r) > maxChars {
			text = strings.TrimSpace(string(r[:maxChars]))
		}
	}
	return text
}

func cacheKey(text string, dimension int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", dimension, text)))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func (c *Client) fromCache(ctx context.Context, key string) ([]float64, bool) {
	if c.cache == nil || c.config.CacheTTL <= 0 {
		return nil, false
	}

	raw, err := c.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("embedding cache read failed", map[string]interface{}{"error": err.Error()})
		}
		metrics.CacheLookups.WithLabelValues("embedding", "miss").Inc()
		return nil, false
	}

	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err != nil || Validate(vec, c.config.Dimension) != nil {
		metrics.CacheLookups.WithLabelValues("embedding", "miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("embedding", "hit").Inc()
	return vec, true
}

func (c *Client) toCache(ctx context.Context, key string, vec []float64) {
	if c.cache == nil || c.config.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.config.CacheTTL).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
