// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-broker/internal/common/config"
	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/consent"
	"intent-broker/internal/dealroom"
	"intent-broker/internal/genai"
	"intent-broker/internal/intents"
	"intent-broker/internal/matching/embedding"
	"intent-broker/internal/matching/engine"
	"intent-broker/internal/matching/keywords"
	"intent-broker/internal/matching/scoring"
	"intent-broker/internal/models"
	"intent-broker/internal/notify"
	"intent-broker/internal/search"
	"intent-broker/internal/storage"
	"intent-broker/internal/store"

	createintent "intent-broker/internal/workers/intent/create-intent"
	listmyintents "intent-broker/internal/workers/intent/list-my-intents"

	findmatches "intent-broker/internal/workers/matching/find-matches"
	listmymatches "intent-broker/internal/workers/matching/list-my-matches"

	declinematch "intent-broker/internal/workers/consent/decline-match"
	expressinterest "intent-broker/internal/workers/consent/express-interest"

	createdealroom "intent-broker/internal/workers/dealroom/create-deal-room"
	getdealroom "intent-broker/internal/workers/dealroom/get-deal-room"
	listdealroomdocuments "intent-broker/internal/workers/dealroom/list-deal-room-documents"
	listmydealrooms "intent-broker/internal/workers/dealroom/list-my-deal-rooms"
	signnda "intent-broker/internal/workers/dealroom/sign-nda"
)

const dimension = 4

// ==========================
// Environment
// ==========================

// openDB connects to the Postgres named by E2E_POSTGRES_DSN and migrates it.
// The suite is skipped when the variable is unset.
func openDB(t *testing.T, log logger.Logger) *sql.DB {
	dsn := os.Getenv("E2E_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("E2E_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, store.Migrate(db, log))
	return db
}

func openRedis(t *testing.T) redis.Cmdable {
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { rdb.Close() })
		return rdb
	}
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// gateway stands in for the GenAI gateway. Commodity text embeds along one
// axis and everything else along another; every pair scores 85.
func gateway(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/ai/embeddings":
			vec := []float64{0.1, 1, 0.1, 0}
			if strings.Contains(strings.ToLower(body["input"].(string)), "crude") {
				vec = []float64{1, 0.1, 0, 0.1}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"embedding": vec})
		case "/api/ai/generate":
			format := body["response_format"].(map[string]interface{})
			name := format["json_schema"].(map[string]interface{})["name"]
			text := `{"keywords":["crude","oil","cargo"]}`
			if name == "match_analysis" {
				text = `{"score":85,"reason":"Opposite sides of the same crude cargo","compatible":true}`
			}
			json.NewEncoder(w).Encode(map[string]string{"text": text})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	db          *sql.DB
	createIn    *createintent.Handler
	listIn      *listmyintents.Handler
	find        *findmatches.Handler
	listMatches *listmymatches.Handler
	interest    *expressinterest.Handler
	decline     *declinematch.Handler
	createRoom  *createdealroom.Handler
	sign        *signnda.Handler
	listDocs    *listdealroomdocuments.Handler
	listRooms   *listmydealrooms.Handler
	getRoom     *getdealroom.Handler
}

func newStack(t *testing.T) *stack {
	log := logger.NewTestLogger(t)
	db := openDB(t, log)
	rdb := openRedis(t)
	srv := gateway(t)

	st := store.New(db)
	gen := genai.NewClient(srv.URL, "", 5*time.Second, 0)
	embedder := embedding.NewClient(embedding.Config{Dimension: dimension, MaxInputChars: 2000, Timeout: 5 * time.Second, CacheTTL: time.Hour}, gen, rdb, log)
	scorer := scoring.NewCachedScorer(scoring.NewScorer(gen, 5*time.Second, log), rdb, time.Hour, log)
	dispatcher := notify.NewDispatcher(notify.Config{}, st, nil, nil, log)

	docs, err := storage.NewLocalStorage(config.StorageConfig{LocalDir: t.TempDir(), Prefix: "deal-rooms"})
	require.NoError(t, err)

	intentSvc := intents.NewService(st, keywords.NewExtractor(gen, 5*time.Second, log), embedder, nil, log)
	matcher := engine.New(engine.Config{
		Dimension:        dimension,
		SimilarityFloor:  0.3,
		TopK:             10,
		ScoreThreshold:   70,
		Concurrency:      2,
		CandidateTimeout: 5 * time.Second,
	}, st, search.NewCandidates(st, nil, 200, dimension, log), scorer, dispatcher, log)
	consentSvc := consent.NewService(st, dispatcher, log)
	provisioner := dealroom.NewProvisioner(dealroom.Config{
		ExpiryDays:          30,
		WatermarkDocuments:  true,
		RequireNDA:          true,
		DefaultJurisdiction: "the State of Delaware, United States",
	}, st, docs, dealroom.PDFRenderer{}, dispatcher, log)

	wcfg := config.WorkerConfig{Enabled: true, Timeout: 30000}
	return &stack{
		db:          db,
		createIn:    createintent.NewHandler(createintent.LoadConfig(wcfg), intentSvc, log),
		listIn:      listmyintents.NewHandler(listmyintents.LoadConfig(wcfg), intentSvc, log),
		find:        findmatches.NewHandler(findmatches.LoadConfig(wcfg), matcher, log),
		listMatches: listmymatches.NewHandler(listmymatches.LoadConfig(wcfg), consentSvc, log),
		interest:    expressinterest.NewHandler(expressinterest.LoadConfig(wcfg), consentSvc, log),
		decline:     declinematch.NewHandler(declinematch.LoadConfig(wcfg), consentSvc, log),
		createRoom:  createdealroom.NewHandler(createdealroom.LoadConfig(wcfg), provisioner, log),
		sign:        signnda.NewHandler(signnda.LoadConfig(wcfg), provisioner, log),
		listDocs:    listdealroomdocuments.NewHandler(listdealroomdocuments.LoadConfig(wcfg), provisioner, log),
		listRooms:   listmydealrooms.NewHandler(listmydealrooms.LoadConfig(wcfg), provisioner, log),
		getRoom:     getdealroom.NewHandler(getdealroom.LoadConfig(wcfg), provisioner, log),
	}
}

func (s *stack) addUser(t *testing.T, name, company string) string {
	id := "e2e-" + uuid.New().String()
	_, err := s.db.Exec(`INSERT INTO users (id, name, company, verification_tier) VALUES ($1, $2, $3, 'verified')`, id, name, company)
	require.NoError(t, err)
	return id
}

// ==========================
// Flow
// ==========================

func TestFullE2E(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	buyer := s.addUser(t, "Ada", "Gulf Trading")
	seller := s.addUser(t, "Bo", "Refine Co")
	commodity := models.AssetCommodity

	sold, err := s.createIn.Execute(ctx, &createintent.Input{UserID: seller, Intent: models.IntentDraft{
		Kind:      models.IntentSell,
		Title:     "Crude oil cargo, 2M barrels",
		AssetType: &commodity,
	}})
	require.NoError(t, err)
	assert.NotEmpty(t, sold.Intent.Keywords)

	bought, err := s.createIn.Execute(ctx, &createintent.Input{UserID: buyer, Intent: models.IntentDraft{
		Kind:      models.IntentBuy,
		Title:     "Buying crude oil for Q3 delivery",
		AssetType: &commodity,
	}})
	require.NoError(t, err)

	mine, err := s.listIn.Execute(ctx, &listmyintents.Input{UserID: buyer})
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Count)

	// findMatches persists the pair and notifies the seller.
	found, err := s.find.Execute(ctx, &findmatches.Input{UserID: buyer, IntentID: bought.Intent.ID})
	require.NoError(t, err)
	assert.Equal(t, engine.RankingSemantic, found.Ranking)

	var matchID string
	for _, c := range found.Candidates {
		if c.IntentID == sold.Intent.ID {
			matchID = c.MatchID
		}
	}
	require.NotEmpty(t, matchID, "seller intent should be matched")

	// Blind until both sides consent.
	sellerView, err := s.listMatches.Execute(ctx, &listmymatches.Input{UserID: seller})
	require.NoError(t, err)
	require.NotEmpty(t, sellerView.Matches)
	assert.Nil(t, sellerView.Matches[0].Counterparty)

	first, err := s.interest.Execute(ctx, &expressinterest.Input{UserID: seller, MatchID: matchID})
	require.NoError(t, err)
	assert.False(t, first.MutualInterest)

	second, err := s.interest.Execute(ctx, &expressinterest.Input{UserID: buyer, MatchID: matchID})
	require.NoError(t, err)
	assert.True(t, second.MutualInterest)
	require.NotNil(t, second.Match.Counterparty)
	assert.Equal(t, "Bo", second.Match.Counterparty.Name)

	room, err := s.createRoom.Execute(ctx, &createdealroom.Input{UserID: buyer, MatchID: matchID})
	require.NoError(t, err)
	require.NotNil(t, room.NDADocumentID)

	again, err := s.createRoom.Execute(ctx, &createdealroom.Input{UserID: seller, MatchID: matchID})
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, room.DealRoom.ID, again.DealRoom.ID)

	rooms, err := s.listRooms.Execute(ctx, &listmydealrooms.Input{UserID: seller})
	require.NoError(t, err)
	require.Equal(t, 1, rooms.Count)
	assert.Equal(t, room.DealRoom.ID, rooms.DealRooms[0].DealRoom.ID)
	assert.Equal(t, seller, rooms.DealRooms[0].Access.UserID)

	view, err := s.getRoom.Execute(ctx, &getdealroom.Input{UserID: buyer, DealRoomID: room.DealRoom.ID})
	require.NoError(t, err)
	assert.Equal(t, matchID, view.DealRoom.MatchID)
	assert.False(t, view.AccessExpired)

	_, err = s.getRoom.Execute(ctx, &getdealroom.Input{UserID: "outsider", DealRoomID: room.DealRoom.ID})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

	docs, err := s.listDocs.Execute(ctx, &listdealroomdocuments.Input{UserID: seller, DealRoomID: room.DealRoom.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, docs.Count)
	assert.Equal(t, models.DocNDA, docs.Documents[0].Category)

	signed, err := s.sign.Execute(ctx, &signnda.Input{UserID: seller, DealRoomID: room.DealRoom.ID})
	require.NoError(t, err)
	assert.False(t, signed.AllSigned)

	signed, err = s.sign.Execute(ctx, &signnda.Input{UserID: buyer, DealRoomID: room.DealRoom.ID})
	require.NoError(t, err)
	assert.True(t, signed.AllSigned)

	// A deal room is terminal for consent.
	_, err = s.decline.Execute(ctx, &declinematch.Input{UserID: seller, MatchID: matchID})
	assert.Error(t, err)
}

// TestZeebeTopology checks the broker named by ZEEBE_ADDRESS answers.
func TestZeebeTopology(t *testing.T) {
	addr := os.Getenv("ZEEBE_ADDRESS")
	if addr == "" {
		t.Skip("ZEEBE_ADDRESS not set")
	}

	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         addr,
		UsePlaintextConnection: true,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	topology, err := client.NewTopologyCommand().Send(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, topology.Brokers)
}
