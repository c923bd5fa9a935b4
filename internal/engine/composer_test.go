package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/pkg/types"
)

func testComposer(gen *fakeGenerator) *Composer {
	return NewComposer(gen, config.PipelineConfig{ConfidenceCap: 0.95, FallbackCap: 0.45})
}

func normalized(text string) types.NormalizedQuery {
	return types.NormalizedQuery{
		Query:         types.Query{ID: "q1", Text: text},
		CanonicalText: text,
	}
}

func TestComposeDirectWeatherAnswer(t *testing.T) {
	gen := &fakeGenerator{text: "should not be called"}
	composer := testComposer(gen)

	answer := composer.Compose(context.Background(), normalized("weather in Mumbai"),
		types.IntentWeather, fullWeatherContext(), nil)

	assert.Zero(t, gen.calls.Load())
	assert.False(t, answer.Fallback)
	assert.Contains(t, answer.Text, "Temperature: 28.5°C (open-meteo)")
	assert.Contains(t, answer.Text, "Soil moisture: 31% (nasa-power)")
}

func TestComposePartialWeatherUsesModel(t *testing.T) {
	gen := &fakeGenerator{text: "Light rain expected; postpone spraying."}
	composer := testComposer(gen)

	wx := fullWeatherContext()
	delete(wx.Primary, types.FieldSoilMoisture)

	answer := composer.Compose(context.Background(), normalized("weather in Mumbai"),
		types.IntentWeather, wx, nil)

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, "Light rain expected; postpone spraying.", answer.Text)
}

func TestComposeFallbackWithoutAnyEvidence(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("down")}
	composer := testComposer(gen)

	answer := composer.Compose(context.Background(), normalized("anything"),
		types.IntentUnknown, nil, nil)

	assert.True(t, answer.Fallback)
	assert.Contains(t, answer.Text, "No relevant information")
	assert.LessOrEqual(t, answer.Confidence, 0.45)
}

func TestComposeEmptyCompletionFallsBack(t *testing.T) {
	gen := &fakeGenerator{text: "```\n```"}
	composer := testComposer(gen)

	answer := composer.Compose(context.Background(), normalized("pests on rice"),
		types.IntentAgriAdvice, nil, adviceResult())

	assert.True(t, answer.Fallback)
	assert.Contains(t, answer.Text, "From wheat.md:")
}

func TestSelectGroundingChunksBudget(t *testing.T) {
	big := strings.Repeat("word ", 400) // ~500 tokens each
	rr := &types.RetrievalResult{Matches: []types.ScoredChunk{
		{Chunk: types.Chunk{ID: "a#0", DocumentID: "a", Text: big}, Score: 0.9},
		{Chunk: types.Chunk{ID: "b#0", DocumentID: "b", Text: big}, Score: 0.8},
		{Chunk: types.Chunk{ID: "c#0", DocumentID: "c", Text: big}, Score: 0.7},
	}}

	included := selectGroundingChunks(rr, 1000)
	require.Len(t, included, 2, "third chunk exceeds the budget")
	assert.Equal(t, "a#0", included[0].Chunk.ID)

	// The first chunk is always included even when oversized.
	included = selectGroundingChunks(rr, 10)
	require.Len(t, included, 1)
}

func TestChunkSourcesDeduplicated(t *testing.T) {
	included := []types.ScoredChunk{
		{Chunk: types.Chunk{ID: "a#0", DocumentID: "a"}},
		{Chunk: types.Chunk{ID: "a#1", DocumentID: "a"}},
		{Chunk: types.Chunk{ID: "b#0", DocumentID: "b"}},
	}
	assert.Equal(t, []string{"a", "b"}, chunkSources(included))
}

func TestScoreConfidenceOrdering(t *testing.T) {
	rr := adviceResult()
	wx := fullWeatherContext()

	full := scoreConfidence(rr, wx, len(rr.Matches))
	noWeather := scoreConfidence(rr, nil, len(rr.Matches))
	noKnowledge := scoreConfidence(nil, wx, 0)
	nothing := scoreConfidence(nil, nil, 0)

	assert.Greater(t, full, noWeather)
	assert.Greater(t, full, noKnowledge)
	assert.Greater(t, noWeather, nothing)
	assert.Zero(t, nothing)
}

func TestScoreConfidenceMultiProviderBonus(t *testing.T) {
	single := fullWeatherContext()
	single.Readings = map[string]types.ProviderReading{"open-meteo": {Provider: "open-meteo"}}

	multi := fullWeatherContext()

	assert.Greater(t, scoreConfidence(nil, multi, 0), scoreConfidence(nil, single, 0))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.95, clampConfidence(1.2, 0.95))
	assert.Equal(t, 0.5, clampConfidence(0.5, 0.95))
	assert.Equal(t, 0.0, clampConfidence(-0.1, 0.95))
}
