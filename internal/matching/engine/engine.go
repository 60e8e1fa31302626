// Package engine runs findMatches: candidate retrieval, ranking, compatibility
// scoring and match persistence.
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/common/observability"
	"intent-broker/internal/matching/embedding"
	"intent-broker/internal/matching/scoring"
	"intent-broker/internal/matching/similarity"
	"intent-broker/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

var errPairVanished = errors.New("match for pair not found after conflicting insert")

const (
	RankingSemantic = "semantic"
	RankingFallback = "fallback"
)

type IntentStore interface {
	GetIntentForUser(ctx context.Context, userID, intentID string) (*models.Intent, error)
	FindMatchByPair(ctx context.Context, intentA, intentB string) (*models.Match, error)
	CreateMatchIfAbsent(ctx context.Context, m *models.Match) (bool, error)
}

type CandidateSource interface {
	Candidates(ctx context.Context, source *models.Intent) ([]*models.Intent, error)
}

type Scorer interface {
	Score(ctx context.Context, a, b *models.Intent) (*scoring.Verdict, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Config struct {
	Dimension        int
	SimilarityFloor  float64
	TopK             int
	ScoreThreshold   float64
	Concurrency      int
	CandidateTimeout time.Duration
}

// ScoredCandidate is one entry of the findMatches preview. It never carries the
// candidate owner's identity.
type ScoredCandidate struct {
	IntentID   string            `json:"intentId"`
	Kind       models.IntentKind `json:"kind"`
	Title      string            `json:"title"`
	Similarity float64           `json:"similarity"`
	Score      float64           `json:"score"`
	Reason     string            `json:"reason"`
	Compatible bool              `json:"compatible"`
	Cached     bool              `json:"cached"`
	Persisted  bool              `json:"persisted"`
	MatchID    string            `json:"matchId,omitempty"`
}

type Result struct {
	IntentID       string            `json:"intentId"`
	Ranking        string            `json:"ranking"`
	Candidates     []ScoredCandidate `json:"candidates"`
	MatchesCreated int               `json:"matchesCreated"`
	Failed         int               `json:"failed"`
}

type Engine struct {
	config     Config
	store      IntentStore
	candidates CandidateSource
	scorer     Scorer
	notifier   Notifier
	logger     logger.Logger
}

func New(config Config, store IntentStore, candidates CandidateSource, scorer Scorer, notifier Notifier, log logger.Logger) *Engine {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Engine{
		config:     config,
		store:      store,
		candidates: candidates,
		scorer:     scorer,
		notifier:   notifier,
		logger:     log.WithFields(map[string]interface{}{"component": "match-engine"}),
	}
}

// FindMatches scores the best candidates for the caller's intent and persists
// the ones that clear the acceptance rule. Upstream failures only shrink the
// result; the call fails on the ownership check and on storage errors.
func (e *Engine) FindMatches(ctx context.Context, userID, intentID string) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "engine.FindMatches", attribute.String("intent.id", intentID))
	defer span.End()

	source, err := e.store.GetIntentForUser(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}

	pool, err := e.candidates.Candidates(ctx, source)
	if err != nil {
		return nil, err
	}

	ranked, mode := e.rank(source, pool)
	metrics.RankingMode.WithLabelValues(mode).Inc()
	span.SetAttributes(attribute.String("ranking", mode), attribute.Int("candidates", len(ranked)))

	byID := make(map[string]*models.Intent, len(pool))
	for _, in := range pool {
		byID[in.ID] = in
	}

	verdicts := e.scoreAll(ctx, source, ranked, byID)

	result := &Result{IntentID: source.ID, Ranking: mode, Candidates: make([]ScoredCandidate, 0, len(ranked))}
	for i, r := range ranked {
		v := verdicts[i]
		if v == nil {
			result.Failed++
			continue
		}
		candidate := byID[r.ID]
		sc := ScoredCandidate{
			IntentID:   candidate.ID,
			Kind:       candidate.Kind,
			Title:      candidate.Title,
			Similarity: r.Similarity,
			Score:      v.Score,
			Reason:     v.Reason,
			Compatible: v.Compatible,
			Cached:     v.Cached,
		}

		if v.Accepted(e.config.ScoreThreshold) {
			matchID, created, err := e.persist(ctx, source, candidate, v)
			if err != nil {
				return nil, err
			}
			sc.Persisted = true
			sc.MatchID = matchID
			if created {
				result.MatchesCreated++
				e.notifyCandidate(ctx, candidate.UserID, matchID, v.Reason)
			}
		}
		result.Candidates = append(result.Candidates, sc)
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Score > result.Candidates[j].Score
	})

	e.logger.Info("findMatches completed", map[string]interface{}{
		"intentId":       source.ID,
		"ranking":        mode,
		"ranked":         len(ranked),
		"scored":         len(result.Candidates),
		"failed":         result.Failed,
		"matchesCreated": result.MatchesCreated,
	})
	return result, nil
}

func (e *Engine) rank(source *models.Intent, pool []*models.Intent) ([]similarity.Ranked, string) {
	candidates := make([]similarity.Candidate, 0, len(pool))
	for _, in := range pool {
		if in.ID == source.ID || in.UserID == source.UserID {
			continue
		}
		candidates = append(candidates, similarity.Candidate{ID: in.ID, Embedding: in.Embedding})
	}

	if embedding.Available(source.Embedding, e.config.Dimension) {
		return similarity.Rank(source.Embedding, candidates, e.config.SimilarityFloor, e.config.TopK), RankingSemantic
	}
	return similarity.Prefix(candidates, e.config.TopK), RankingFallback
}

// scoreAll scores ranked candidates with bounded concurrency. A nil entry means
// that candidate produced no usable verdict.
func (e *Engine) scoreAll(ctx context.Context, source *models.Intent, ranked []similarity.Ranked, byID map[string]*models.Intent) []*scoring.Verdict {
	verdicts := make([]*scoring.Verdict, len(ranked))
	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, r := range ranked {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, candidate *models.Intent) {
			defer wg.Done()
			defer func() { <-sem }()
			verdicts[i] = e.scoreOne(ctx, source, candidate)
		}(i, byID[r.ID])
	}
	wg.Wait()
	return verdicts
}

func (e *Engine) scoreOne(ctx context.Context, source, candidate *models.Intent) *scoring.Verdict {
	if e.config.CandidateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.CandidateTimeout)
		defer cancel()
	}

	v, err := e.scorer.Score(ctx, source, candidate)
	if err != nil {
		metrics.CandidatesScored.WithLabelValues("failed").Inc()
		e.logger.Warn("candidate scoring failed", map[string]interface{}{
			"intentId":    source.ID,
			"candidateId": candidate.ID,
			"error":       err.Error(),
		})
		return nil
	}

	switch {
	case v.Cached:
		metrics.CandidatesScored.WithLabelValues("cached").Inc()
	case v.Accepted(e.config.ScoreThreshold):
		metrics.CandidatesScored.WithLabelValues("accepted").Inc()
	default:
		metrics.CandidatesScored.WithLabelValues("rejected").Inc()
	}
	return v
}

// persist returns the match for the pair, creating it when absent. The
// requester's intent is stored as intent A.
func (e *Engine) persist(ctx context.Context, source, candidate *models.Intent, v *scoring.Verdict) (string, bool, error) {
	existing, err := e.store.FindMatchByPair(ctx, source.ID, candidate.ID)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	m := &models.Match{
		IntentAID: source.ID,
		IntentBID: candidate.ID,
		User1ID:   source.UserID,
		User2ID:   candidate.UserID,
		Score:     scoring.RoundScore(v.Score),
		Reason:    v.Reason,
		Status:    models.MatchPending,
	}
	created, err := e.store.CreateMatchIfAbsent(ctx, m)
	if err != nil {
		return "", false, err
	}
	if created {
		metrics.MatchesCreated.Inc()
		return m.ID, true, nil
	}

	// Lost the race to a concurrent caller; report the winner's row.
	existing, err = e.store.FindMatchByPair(ctx, source.ID, candidate.ID)
	if err != nil {
		return "", false, err
	}
	if existing == nil {
		return "", false, apperrors.NewInternalError(errPairVanished)
	}
	return existing.ID, false, nil
}

func (e *Engine) notifyCandidate(ctx context.Context, userID, matchID, reason string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.Notify(ctx, models.Notification{
		UserID:            userID,
		Kind:              models.NotifyMatchFound,
		Title:             "New Match Found",
		Message:           matchMessage(reason),
		RelatedEntityType: "match",
		RelatedEntityID:   matchID,
	})
	if err != nil {
		e.logger.Warn("match notification failed", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	}
}

func matchMessage(reason string) string {
	if reason == "" {
		return "A new compatible match was found for your intent."
	}
	r := []rune(reason)
	if len(r) > 80 {
		return "Match: " + string(r[:80]) + "…"
	}
	return "Match: " + reason
}
