package keywords

import (
	"context"
	"errors"
	"testing"
	"time"

	"intent-broker/internal/common/logger"
	"intent-broker/internal/genai"

	"github.com/stretchr/testify/assert"
)

type stubGenerator struct {
	text string
	err  error
	got  []genai.Message
}

func (s *stubGenerator) Generate(ctx context.Context, messages []genai.Message, schemaName string, schema map[string]interface{}) (string, error) {
	s.got = messages
	return s.text, s.err
}

var oilInput = Input{
	Kind:          "buy",
	Title:         "Buy crude oil cargo",
	Description:   "Crude oil, Brent grade, delivered to Rotterdam. Oil traders only.",
	AssetCategory: "oil_gas",
}

func TestExtract_UsesGeneratedKeywords(t *testing.T) {
	gen := &stubGenerator{text: `{"keywords": ["Crude Oil", "brent", "crude oil", " rotterdam "]}`}
	e := NewExtractor(gen, time.Second, logger.NewTestLogger(t))

	got := e.Extract(context.Background(), oilInput)

	assert.Equal(t, []string{"crude oil", "brent", "rotterdam"}, got)
	assert.Equal(t, prompt, gen.got[0].Content)
	assert.Contains(t, gen.got[1].Content, "Buy crude oil cargo")
}

func TestExtract_FallsBackLocally(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"service error", &stubGenerator{err: errors.New("503")}},
		{"off schema", &stubGenerator{text: `["oil"]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(tt.gen, time.Second, logger.NewTestLogger(t))
			assert.Equal(t, Local(oilInput.text()), e.Extract(context.Background(), oilInput))
		})
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	e := NewExtractor(nil, time.Second, logger.NewTestLogger(t))
	assert.Empty(t, e.Extract(context.Background(), Input{}))
}

func TestLocal_FrequencyThenFirstAppearance(t *testing.T) {
	got := Local("Crude oil, Brent grade. Oil and crude for the Rotterdam oil terminal")

	assert.Equal(t, []string{"oil", "crude", "brent", "grade", "rotterdam", "terminal"}, got)
}

func TestLocal_CapsAtTen(t *testing.T) {
	got := Local("alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima")

	assert.Len(t, got, 10)
	assert.Equal(t, "alpha", got[0])
	assert.NotContains(t, got, "kilo")
}

func TestLocal_DropsStopwordsAndShortTokens(t *testing.T) {
	got := Local("We are looking for an EV or a solar farm in the UK")

	assert.Equal(t, []string{"solar", "farm"}, got)
}
