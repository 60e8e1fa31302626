// Package keywords derives the keyword set stored with each intent.
package keywords

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"intent-broker/internal/common/logger"
	"intent-broker/internal/genai"
)

const (
	prompt      = "Extract 5-10 relevant keywords from this intent for matching purposes."
	maxKeywords = 10
	minTokenLen = 3
)

var keywordSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"keywords": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []interface{}{"keywords"},
}

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such",
		"into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off",
		"own", "same", "too", "very", "can", "will", "just", "should", "now", "we", "our", "looking",
		"seeking", "want", "wants", "need", "needs", "any", "all", "per", "via",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Generator is the structured-generation call; genai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, messages []genai.Message, schemaName string, schema map[string]interface{}) (string, error)
}

// Input is the text an intent contributes to its keywords.
type Input struct {
	Kind          string
	Title         string
	Description   string
	AssetCategory string
}

func (in Input) text() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{in.Kind, in.Title, in.Description, in.AssetCategory} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

type Extractor struct {
	gen     Generator
	timeout time.Duration
	logger  logger.Logger
}

// NewExtractor returns an extractor. A nil generator means local extraction only.
func NewExtractor(gen Generator, timeout time.Duration, log logger.Logger) *Extractor {
	return &Extractor{
		gen:     gen,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "keywords"}),
	}
}

// Extract never fails: when the generation service errors or returns garbage the
// local tokenizer result is used instead.
func (e *Extractor) Extract(ctx context.Context, in Input) []string {
	text := in.text()
	if text == "" {
		return []string{}
	}
	if e.gen == nil {
		return Local(text)
	}

	kws, err := e.remote(ctx, text)
	if err != nil {
		e.logger.Warn("keyword generation failed, using local extraction", map[string]interface{}{
			"error": err.Error(),
		})
		return Local(text)
	}
	return kws
}

func (e *Extractor) remote(ctx context.Context, text string) ([]string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := e.gen.Generate(ctx, []genai.Message{genai.System(prompt), genai.User(text)}, "keywords", keywordSchema)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Keywords []string `json:"keywords"`
	}
	if err := genai.DecodeStructured(out, keywordSchema, &resp); err != nil {
		return nil, err
	}
	return clean(resp.Keywords), nil
}

// clean trims, lower-cases and de-duplicates model output, keeping order.
func clean(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// Local tokenizes text and returns up to ten keywords ordered by frequency, then
// by first appearance.
func Local(text string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	type term struct {
		word  string
		count int
		first int
	}
	index := make(map[string]*term)
	terms := make([]*term, 0)
	for i, tok := range tokens {
		if len([]rune(tok)) < minTokenLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if t, ok := index[tok]; ok {
			t.count++
			continue
		}
		t := &term{word: tok, count: 1, first: i}
		index[tok] = t
		terms = append(terms, t)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].first < terms[j].first
	})

	n := len(terms)
	if n > maxKeywords {
		n = maxKeywords
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = terms[i].word
	}
	return out
}
