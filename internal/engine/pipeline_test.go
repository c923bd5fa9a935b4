package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/internal/lang"
	"github.com/vruksh/agroqa/internal/query"
	"github.com/vruksh/agroqa/pkg/types"
)

type fakeTranslator struct {
	calls atomic.Int32
	fail  bool
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.calls.Add(1)
	if f.fail {
		return "", errors.New("translator down")
	}
	return "[" + target + "] " + text, nil
}

type fakeWeather struct {
	calls      atomic.Int32
	candidates []string
	window     types.TimeRange
	context    *types.WeatherContext
	err        error
}

func (f *fakeWeather) Fetch(ctx context.Context, candidates []string, tr types.TimeRange) (*types.WeatherContext, error) {
	f.calls.Add(1)
	f.candidates = candidates
	f.window = tr
	if f.err != nil {
		return nil, f.err
	}
	return f.context, nil
}

type fakeRetriever struct {
	calls  atomic.Int32
	result *types.RetrievalResult
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string, topK int) (*types.RetrievalResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGenerator struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeGenerator) GetModel() string { return "fake-model" }

func fullWeatherContext() *types.WeatherContext {
	return &types.WeatherContext{
		Location:    "Mumbai",
		Coordinates: types.Coordinates{Lat: 19.0760, Lon: 72.8777},
		Range: types.NewTimeRange(
			time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)),
		Readings: map[string]types.ProviderReading{
			"open-meteo": {Provider: "open-meteo"},
			"nasa-power": {Provider: "nasa-power"},
		},
		Primary: map[types.WeatherField]types.FieldValue{
			types.FieldTemperature:  {Value: 28.5, Provider: "open-meteo"},
			types.FieldHumidity:     {Value: 64, Provider: "open-meteo"},
			types.FieldRainfall:     {Value: 2.5, Provider: "open-meteo"},
			types.FieldWindSpeed:    {Value: 4.1, Provider: "open-meteo"},
			types.FieldSoilMoisture: {Value: 31, Provider: "nasa-power"},
		},
		Summary:   "Mumbai (2024-01-15 to 2024-01-20): temperature 28.5°C, humidity 64%",
		FetchedAt: time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
	}
}

func adviceResult() *types.RetrievalResult {
	return &types.RetrievalResult{Matches: []types.ScoredChunk{
		{Chunk: types.Chunk{ID: "wheat.md#0", DocumentID: "wheat.md",
			Text: "Irrigate wheat at crown root initiation, about 21 days after sowing."}, Score: 0.82},
		{Chunk: types.Chunk{ID: "irrigation.md#2", DocumentID: "irrigation.md",
			Text: "Avoid irrigation when rain is expected within 48 hours."}, Score: 0.67},
	}}
}

type fixture struct {
	pipeline   *Pipeline
	translator *fakeTranslator
	weather    *fakeWeather
	retriever  *fakeRetriever
	generator  *fakeGenerator
}

func newFixture() *fixture {
	cfg := config.PipelineConfig{
		WorkingLanguage: "en",
		StageTimeout:    5 * time.Second,
		ConfidenceCap:   0.95,
		FallbackCap:     0.45,
	}
	translator := &fakeTranslator{}
	weather := &fakeWeather{context: fullWeatherContext()}
	retriever := &fakeRetriever{result: adviceResult()}
	generator := &fakeGenerator{text: "Irrigate early in the morning before the rain arrives."}

	pipeline := NewPipeline(cfg,
		lang.NewNormalizer(translator, "en"),
		query.NewTimelineResolver(1, 120, 1),
		weather, retriever,
		NewComposer(generator, cfg),
		"")
	return &fixture{pipeline: pipeline, translator: translator, weather: weather,
		retriever: retriever, generator: generator}
}

func TestAnswerEmptyQueryNoExternalCalls(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Zero(t, f.translator.calls.Load())
	assert.Zero(t, f.weather.calls.Load())
	assert.Zero(t, f.retriever.calls.Load())
	assert.Zero(t, f.generator.calls.Load())
}

func TestAnswerMumbaiWeatherEndToEnd(t *testing.T) {
	f := newFixture()
	refDate := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	answer, err := f.pipeline.Answer(context.Background(),
		"What is the weather in Mumbai for the next 5 days?",
		WithReferenceDate(refDate))
	require.NoError(t, err)

	assert.Equal(t, types.IntentWeather, answer.Intent)
	assert.Equal(t, []string{"Mumbai"}, f.weather.candidates)
	assert.True(t, f.weather.window.Start.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, f.weather.window.End.Equal(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)))

	require.NotNil(t, answer.Weather)
	assert.Equal(t, "Mumbai", answer.Weather.Location)
	assert.Contains(t, answer.Text, "Temperature")
	assert.Greater(t, answer.Confidence, 0.0)

	// Complete weather context answers deterministically, no LLM call.
	assert.Zero(t, f.generator.calls.Load())
	// Pure weather questions skip retrieval.
	assert.Zero(t, f.retriever.calls.Load())
	assert.Empty(t, answer.Degradations)
	assert.NotEmpty(t, answer.ID)
	assert.NotEmpty(t, answer.QueryID)
}

func TestAnswerHybridRunsBothStages(t *testing.T) {
	f := newFixture()

	answer, err := f.pipeline.Answer(context.Background(),
		"Should I irrigate my wheat before the rain in Mumbai?")
	require.NoError(t, err)

	assert.Equal(t, types.IntentHybrid, answer.Intent)
	assert.Equal(t, int32(1), f.weather.calls.Load())
	assert.Equal(t, int32(1), f.retriever.calls.Load())
	assert.Equal(t, int32(1), f.generator.calls.Load())
	assert.Contains(t, answer.Sources, "wheat.md")
}

func TestAnswerWeatherFailureDegrades(t *testing.T) {
	healthy := newFixture()
	baseline, err := healthy.pipeline.Answer(context.Background(),
		"Should I irrigate my wheat before the rain in Mumbai?")
	require.NoError(t, err)

	degraded := newFixture()
	degraded.weather.err = types.ErrWeatherUnavailable

	answer, err := degraded.pipeline.Answer(context.Background(),
		"Should I irrigate my wheat before the rain in Mumbai?")
	require.NoError(t, err, "weather failure must not surface as an error")

	assert.Nil(t, answer.Weather)
	assert.NotEmpty(t, answer.Degradations)
	assert.Less(t, answer.Confidence, baseline.Confidence)
	assert.NotEmpty(t, answer.Text, "answer still composed from knowledge context")
}

func TestAnswerLocationUnresolvedDegrades(t *testing.T) {
	f := newFixture()
	f.weather.err = types.ErrLocationUnresolved

	answer, err := f.pipeline.Answer(context.Background(),
		"Will it rain on my maize field?")
	require.NoError(t, err)
	assert.Nil(t, answer.Weather)
	assert.NotEmpty(t, answer.Degradations)
}

func TestAnswerIndexNotReadyIsFatal(t *testing.T) {
	f := newFixture()
	f.retriever.err = types.ErrIndexNotReady

	_, err := f.pipeline.Answer(context.Background(),
		"How to control pests in my rice crop?")
	assert.ErrorIs(t, err, types.ErrIndexNotReady)
}

func TestAnswerRetrievalFailureDegrades(t *testing.T) {
	f := newFixture()
	f.retriever.err = errors.New("embedding backend down")

	answer, err := f.pipeline.Answer(context.Background(),
		"How to control pests in my rice crop?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Degradations)
	assert.Empty(t, answer.Sources)
}

func TestAnswerCompletionFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("model unavailable")

	answer, err := f.pipeline.Answer(context.Background(),
		"How to control pests in my rice crop?")
	require.NoError(t, err)

	assert.True(t, answer.Fallback)
	assert.LessOrEqual(t, answer.Confidence, 0.45)
	assert.Contains(t, answer.Text, "wheat.md", "fallback cites the top chunk's source")
}

func TestAnswerTranslatesBack(t *testing.T) {
	f := newFixture()

	answer, err := f.pipeline.Answer(context.Background(),
		"Should I irrigate my wheat before the rain in Mumbai?",
		WithLanguage("hi"))
	require.NoError(t, err)

	assert.Equal(t, "hi", answer.Language)
	assert.Contains(t, answer.Text, "[hi]")
}

func TestAnswerLocationHintTriedFirst(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Answer(context.Background(),
		"What is the weather in Mumbai for the next 5 days?",
		WithLocationHint("Pune"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Pune", "Mumbai"}, f.weather.candidates)
}

func TestAnswerDefaultLocationLast(t *testing.T) {
	f := newFixture()
	f.pipeline.defaultLocation = "Nagpur"

	_, err := f.pipeline.Answer(context.Background(), "Will it rain tomorrow?")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nagpur"}, f.weather.candidates)
}
