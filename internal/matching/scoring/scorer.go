// Package scoring asks the reasoning service whether two intents are compatible.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/genai"
	"intent-broker/internal/models"
)

const systemPrompt = "Analyze if these two intents are compatible for a deal. " +
	"Return a compatibility score (0-100) and brief reason."

var ErrScoringTimeout = errors.New("scoring timeout")

// verdictSchema is the only shape accepted from the model.
var verdictSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score":      map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
		"reason":     map[string]interface{}{"type": "string"},
		"compatible": map[string]interface{}{"type": "boolean"},
	},
	"required":             []interface{}{"score", "reason", "compatible"},
	"additionalProperties": false,
}

// Verdict is the parsed scorer result. Cached is set when the verdict came from
// the pair cache instead of a fresh call.
type Verdict struct {
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Compatible bool    `json:"compatible"`
	Cached     bool    `json:"-"`
}

// Accepted is the persistence rule: compatible and strictly above threshold
// at stored precision.
func (v *Verdict) Accepted(threshold float64) bool {
	return v != nil && v.Compatible && RoundScore(v.Score) > threshold
}

// RoundScore rounds to the two decimals matches.score keeps; Postgres applies
// the same rounding before its CHECK.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

// Generator is the structured-generation call; genai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, messages []genai.Message, schemaName string, schema map[string]interface{}) (string, error)
}

type Scorer struct {
	gen     Generator
	timeout time.Duration
	logger  logger.Logger
}

func NewScorer(gen Generator, timeout time.Duration, log logger.Logger) *Scorer {
	return &Scorer{
		gen:     gen,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "scorer"}),
	}
}

// Score makes one bounded call for the pair (a, b). The caller owns failure
// isolation; any error here means "no usable result for this candidate".
func (s *Scorer) Score(ctx context.Context, a, b *models.Intent) (*Verdict, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	messages := []genai.Message{
		genai.System(systemPrompt),
		genai.User(PairPrompt(a, b)),
	}

	start := time.Now()
	text, err := s.gen.Generate(ctx, messages, "match_analysis", verdictSchema)
	if err != nil {
		metrics.UpstreamDuration.WithLabelValues("scoring", "error").Observe(time.Since(start).Seconds())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrScoringTimeout, s.timeout)
		}
		return nil, err
	}
	metrics.UpstreamDuration.WithLabelValues("scoring", "ok").Observe(time.Since(start).Seconds())

	var v Verdict
	if err := genai.DecodeStructured(text, verdictSchema, &v); err != nil {
		return nil, err
	}
	v.Score = RoundScore(v.Score)
	v.Reason = strings.TrimSpace(v.Reason)
	return &v, nil
}

// PairPrompt renders the two intents for the model. Only descriptive fields are
// included; owner identity never leaves the service.
func PairPrompt(a, b *models.Intent) string {
	var sb strings.Builder
	writeIntent(&sb, "Intent 1", a)
	sb.WriteString("\n")
	writeIntent(&sb, "Intent 2", b)
	return sb.String()
}

func writeIntent(sb *strings.Builder, label string, in *models.Intent) {
	fmt.Fprintf(sb, "%s: %s - %s\n", label, in.Kind, in.Title)
	if in.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", in.Description)
	}
	if cat := in.AssetCategory(); cat != "" {
		fmt.Fprintf(sb, "Asset: %s", cat)
		if in.AssetSubtype != nil && *in.AssetSubtype != "" {
			fmt.Fprintf(sb, " (%s)", *in.AssetSubtype)
		}
		sb.WriteString("\n")
	}
	if in.MinValue != nil || in.MaxValue != nil {
		fmt.Fprintf(sb, "Value: %s - %s %s\n", amount(in.MinValue), amount(in.MaxValue), in.Currency)
	}
	if len(in.TargetLocations) > 0 {
		fmt.Fprintf(sb, "Locations: %s\n", strings.Join(in.TargetLocations, ", "))
	}
	if in.TargetTimeline != nil && *in.TargetTimeline != "" {
		fmt.Fprintf(sb, "Timeline: %s\n", *in.TargetTimeline)
	}
}

func amount(v *float64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
