package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"intent-broker/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls  int
	inputs []string
	vec    []float64
	err    error
}

func (f *fakeBackend) Embeddings(ctx context.Context, input string, dimensions int) ([]float64, error) {
	f.calls++
	f.inputs = append(f.inputs, input)
	return f.vec, f.err
}

func unit(dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = 0.1
	}
	return v
}

func newClient(t *testing.T, backend Backend, cache redis.Cmdable) *Client {
	return NewClient(Config{
		Dimension:     4,
		MaxInputChars: 20,
		Timeout:       time.Second,
		CacheTTL:      time.Hour,
	}, backend, cache, logger.NewTestLogger(t))
}

// ==========================
// Embed
// ==========================

func TestEmbed_BlankTextReturnsZeroVector(t *testing.T) {
	backend := &fakeBackend{}
	c := newClient(t, backend, nil)

	vec, err := c.Embed(context.Background(), "   \n\t ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, vec)
	assert.Zero(t, backend.calls)
}

func TestEmbed_TruncatesInput(t *testing.T) {
	backend := &fakeBackend{vec: unit(4)}
	c := newClient(t, backend, nil)

	_, err := c.Embed(context.Background(), strings.Repeat("barrels ", 10))
	require.NoError(t, err)
	require.Len(t, backend.inputs, 1)
	assert.LessOrEqual(t, len([]rune(backend.inputs[0])), 20)
}

func TestEmbed_RejectsMalformedVectors(t *testing.T) {
	tests := []struct {
		name string
		vec  []float64
	}{
		{"wrong length", []float64{0.1, 0.2}},
		{"out of range", []float64{0.1, 1.5, 0, 0}},
		{"nan", []float64{0.1, math.NaN(), 0, 0}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, &fakeBackend{vec: tt.vec}, nil)
			_, err := c.Embed(context.Background(), "sell crude oil")
			assert.ErrorIs(t, err, ErrInvalidEmbedding)
		})
	}
}

func TestEmbed_BackendErrorPropagates(t *testing.T) {
	c := newClient(t, &fakeBackend{err: errors.New("503")}, nil)
	_, err := c.Embed(context.Background(), "sell crude oil")
	assert.Error(t, err)
}

func TestEmbed_CachesByNormalizedText(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	backend := &fakeBackend{vec: unit(4)}
	c := newClient(t, backend, rdb)

	first, err := c.Embed(context.Background(), "sell  crude oil")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), " sell crude   oil ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.calls)
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, strings.HasPrefix(mr.Keys()[0], "embedding:"))
}

func TestEmbed_CacheOutageFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	backend := &fakeBackend{vec: unit(4)}
	vec, err := newClient(t, backend, rdb).Embed(context.Background(), "sell crude oil")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 1, backend.calls)
}

// ==========================
// Helpers
// ==========================

func TestAvailable(t *testing.T) {
	assert.True(t, Available(unit(4), 4))
	assert.False(t, Available(make([]float64, 4), 4))
	assert.False(t, Available(unit(3), 4))
	assert.False(t, Available(nil, 4))
}

func TestIntentText(t *testing.T) {
	assert.Equal(t, "sell Crude cargo 50k bbl Gulf Coast oil_gas",
		IntentText("sell", "Crude cargo", "50k bbl Gulf Coast", "oil_gas"))
	assert.Equal(t, "buy Crude ", IntentText("buy", "Crude", "", ""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a \n b\tc ", 0))
	assert.Equal(t, "héllo", Normalize("héllo world", 5))
}
