package intents

import (
	"context"
	"errors"
	"testing"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/matching/keywords"
	"intent-broker/internal/models"
	"intent-broker/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float64)
	return vec, args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Index(ctx context.Context, in *models.Intent) error {
	return m.Called(ctx, in).Error(0)
}

func newService(t *testing.T, mem *storetest.Memory, emb *MockEmbedder, idx Indexer) *Service {
	kw := keywords.NewExtractor(nil, 0, logger.NewTestLogger(t))
	return NewService(mem, kw, emb, idx, logger.NewTestLogger(t))
}

func ptr[T any](v T) *T { return &v }

// ==========================
// Create
// ==========================

func TestCreate_AppliesDefaultsAndDerivesFields(t *testing.T) {
	mem := storetest.NewMemory()
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.MatchedBy(func(text string) bool {
		return text == "sell Sell 50,000 barrels crude Gulf Coast delivery oil_gas"
	})).Return([]float64{0.1, 0.2}, nil)
	idx := &MockIndexer{}
	idx.On("Index", mock.Anything, mock.Anything).Return(nil)

	svc := newService(t, mem, emb, idx)
	asset := models.AssetOilGas
	in, err := svc.Create(context.Background(), "user-a", models.IntentDraft{
		Kind:        models.IntentSell,
		Title:       " Sell 50,000 barrels crude ",
		Description: "Gulf Coast delivery",
		AssetType:   &asset,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.Equal(t, "user-a", in.UserID)
	assert.Equal(t, models.IntentActive, in.Status)
	assert.Equal(t, "Sell 50,000 barrels crude", in.Title)
	assert.Equal(t, "USD", in.Currency)
	assert.True(t, in.IsAnonymous)
	assert.Equal(t, models.VisibilityVerified, in.Visibility)
	assert.Contains(t, in.Keywords, "crude")
	assert.Equal(t, []float64{0.1, 0.2}, in.Embedding)

	stored, err := mem.GetIntentForUser(context.Background(), "user-a", in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Embedding, stored.Embedding)
	emb.AssertExpectations(t)
	idx.AssertExpectations(t)
}

func TestCreate_EmbeddingFailureStoresNoVector(t *testing.T) {
	mem := storetest.NewMemory()
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("gateway down"))

	svc := newService(t, mem, emb, nil)
	in, err := svc.Create(context.Background(), "user-a", models.IntentDraft{
		Kind:  models.IntentBuy,
		Title: "Buy crude oil",
	})

	require.NoError(t, err)
	assert.Nil(t, in.Embedding)
	assert.NotEmpty(t, in.Keywords)
}

func TestCreate_IndexFailureIsNotFatal(t *testing.T) {
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float64{1, 0}, nil)
	idx := &MockIndexer{}
	idx.On("Index", mock.Anything, mock.Anything).Return(apperrors.NewSearchQueryError("index_intent", errors.New("503")))

	svc := newService(t, storetest.NewMemory(), emb, idx)
	_, err := svc.Create(context.Background(), "user-a", models.IntentDraft{Kind: models.IntentBuy, Title: "Buy copper"})

	assert.NoError(t, err)
}

func TestCreate_RejectsInvalidDrafts(t *testing.T) {
	tests := []struct {
		name  string
		draft models.IntentDraft
		want  string
	}{
		{"missing kind", models.IntentDraft{Title: "Buy copper"}, "kind"},
		{"unknown kind", models.IntentDraft{Kind: "lease", Title: "Lease rigs"}, "kind"},
		{"short title", models.IntentDraft{Kind: models.IntentBuy, Title: "ab"}, "title"},
		{"bad currency", models.IntentDraft{Kind: models.IntentBuy, Title: "Buy copper", Currency: "DOLLARS"}, "currency"},
		{"negative value", models.IntentDraft{Kind: models.IntentBuy, Title: "Buy copper", MinValue: ptr(-1.0)}, "minValue"},
		{"inverted range", models.IntentDraft{Kind: models.IntentBuy, Title: "Buy copper", MinValue: ptr(10.0), MaxValue: ptr(5.0)}, "minValue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storetest.NewMemory()
			svc := newService(t, mem, &MockEmbedder{}, nil)

			_, err := svc.Create(context.Background(), "user-a", tt.draft)

			require.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput), "got %v", err)
			std, _ := apperrors.As(err)
			assert.Contains(t, std.Details, tt.want)
			intents, _ := mem.ListIntentsByUser(context.Background(), "user-a")
			assert.Empty(t, intents)
		})
	}
}

// ==========================
// Update
// ==========================

func TestUpdate_RecomputesOnlyOnTextChange(t *testing.T) {
	mem := storetest.NewMemory()
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, "buy Buy copper ").Return([]float64{1, 0}, nil).Once()
	emb.On("Embed", mock.Anything, "buy Buy copper cathodes ").Return([]float64{0, 1}, nil).Once()

	svc := newService(t, mem, emb, nil)
	in, err := svc.Create(context.Background(), "user-a", models.IntentDraft{Kind: models.IntentBuy, Title: "Buy copper"})
	require.NoError(t, err)

	paused := models.IntentPaused
	updated, err := svc.Update(context.Background(), "user-a", in.ID, models.IntentPatch{Status: &paused})
	require.NoError(t, err)
	assert.Equal(t, models.IntentPaused, updated.Status)
	assert.Equal(t, []float64{1, 0}, updated.Embedding)

	updated, err = svc.Update(context.Background(), "user-a", in.ID, models.IntentPatch{Title: ptr("Buy copper cathodes")})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, updated.Embedding)
	assert.Contains(t, updated.Keywords, "cathodes")
	assert.True(t, updated.UpdatedAt.After(in.UpdatedAt))

	emb.AssertExpectations(t)
}

func TestUpdate_ForeignIntentIsNotFound(t *testing.T) {
	mem := storetest.NewMemory()
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float64{1, 0}, nil)
	svc := newService(t, mem, emb, nil)

	in, err := svc.Create(context.Background(), "user-a", models.IntentDraft{Kind: models.IntentBuy, Title: "Buy copper"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "user-b", in.ID, models.IntentPatch{Title: ptr("Hijacked")})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

	_, err = svc.Update(context.Background(), "user-a", "missing", models.IntentPatch{Title: ptr("Whatever")})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestUpdate_RangeCheckedAgainstStoredValues(t *testing.T) {
	mem := storetest.NewMemory()
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float64{1, 0}, nil)
	svc := newService(t, mem, emb, nil)

	in, err := svc.Create(context.Background(), "user-a", models.IntentDraft{
		Kind: models.IntentBuy, Title: "Buy copper", MinValue: ptr(100.0), MaxValue: ptr(200.0),
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "user-a", in.ID, models.IntentPatch{MinValue: ptr(500.0)})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}

func TestListMine_NewestFirst(t *testing.T) {
	mem := storetest.NewMemory()
	emb := &MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float64{1, 0}, nil)
	svc := newService(t, mem, emb, nil)

	first, err := svc.Create(context.Background(), "user-a", models.IntentDraft{Kind: models.IntentBuy, Title: "First intent"})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "user-a", models.IntentDraft{Kind: models.IntentSell, Title: "Second intent"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-b", models.IntentDraft{Kind: models.IntentSell, Title: "Someone else"})
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), "user-a")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)
}
