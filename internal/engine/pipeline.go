// Package engine orchestrates the answering pipeline: normalize the
// query, classify intent and extract entities, resolve the time
// window, gather weather and knowledge concurrently, compose the
// answer, and translate it back to the asker's language.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/internal/lang"
	"github.com/vruksh/agroqa/internal/query"
	"github.com/vruksh/agroqa/pkg/types"
)

// WeatherFetcher gathers the fused weather context for the first
// location candidate that resolves.
type WeatherFetcher interface {
	Fetch(ctx context.Context, locationCandidates []string, tr types.TimeRange) (*types.WeatherContext, error)
}

// Retriever serves similarity search over the knowledge corpus.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) (*types.RetrievalResult, error)
}

// queryOptions collects per-call overrides.
type queryOptions struct {
	language     string
	locationHint string
	userID       string
	refDate      time.Time
	topK         int
}

// QueryOption customizes a single Answer call.
type QueryOption func(*queryOptions)

// WithLanguage declares the query's language, skipping detection.
func WithLanguage(code string) QueryOption {
	return func(o *queryOptions) { o.language = code }
}

// WithLocationHint supplies a location tried before any extracted one.
func WithLocationHint(location string) QueryOption {
	return func(o *queryOptions) { o.locationHint = location }
}

// WithUserID attributes the query to a caller.
func WithUserID(id string) QueryOption {
	return func(o *queryOptions) { o.userID = id }
}

// WithReferenceDate anchors relative time expressions ("tomorrow",
// "next 5 days") to a date other than now.
func WithReferenceDate(t time.Time) QueryOption {
	return func(o *queryOptions) { o.refDate = t }
}

// WithTopK overrides the number of knowledge chunks retrieved.
func WithTopK(k int) QueryOption {
	return func(o *queryOptions) { o.topK = k }
}

// Pipeline answers agricultural questions. Safe for concurrent use;
// each Answer call is one independent logical task.
type Pipeline struct {
	cfg        config.PipelineConfig
	normalizer *lang.Normalizer
	timeline   *query.TimelineResolver
	weather    WeatherFetcher
	retriever  Retriever
	composer   *Composer

	defaultLocation string
}

// NewPipeline wires the pipeline stages together. defaultLocation may
// be empty; it is the location of last resort for weather queries that
// name none.
func NewPipeline(cfg config.PipelineConfig, normalizer *lang.Normalizer, timeline *query.TimelineResolver,
	weather WeatherFetcher, retriever Retriever, composer *Composer, defaultLocation string) *Pipeline {
	return &Pipeline{
		cfg:             cfg,
		normalizer:      normalizer,
		timeline:        timeline,
		weather:         weather,
		retriever:       retriever,
		composer:        composer,
		defaultLocation: defaultLocation,
	}
}

// Answer runs the full pipeline for one raw query.
//
// Only two failures are fatal: types.ErrInvalidInput for unusable
// input and types.ErrIndexNotReady when a knowledge question arrives
// before the index is built. Every other stage failure degrades the
// answer (flags set, confidence reduced) instead of erroring.
func (p *Pipeline) Answer(ctx context.Context, rawQuery string, opts ...QueryOption) (types.Answer, error) {
	var options queryOptions
	for _, opt := range opts {
		opt(&options)
	}
	refDate := options.refDate
	if refDate.IsZero() {
		refDate = time.Now()
	}

	q := types.Query{
		ID:           uuid.NewString(),
		Text:         rawQuery,
		Language:     options.language,
		LocationHint: options.locationHint,
		UserID:       options.userID,
		ReceivedAt:   time.Now().UTC(),
	}

	// Normalize. Rejects empty input before any external call.
	nq, err := p.runNormalize(ctx, q)
	if err != nil {
		return types.Answer{}, err
	}

	intent, entities := query.Classify(nq.CanonicalText)
	window := p.timeline.Resolve(nq.CanonicalText, refDate)

	wx, rr, degradations, err := p.gather(ctx, nq, intent, entities, window, options)
	if err != nil {
		return types.Answer{}, err
	}
	if nq.TranslationDegraded {
		degradations = append([]string{"query translation failed; answered from original text"}, degradations...)
	}

	composeCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	answer := p.composer.Compose(composeCtx, nq, intent, wx, rr)
	cancel()

	answer.ID = uuid.NewString()
	answer.QueryID = q.ID
	answer.Language = p.normalizer.WorkingLanguage()
	answer.Degradations = append(degradations, answer.Degradations...)
	if len(degradations) > 0 && !answer.Fallback {
		answer.Confidence = clampConfidence(answer.Confidence*0.85, p.cfg.ConfidenceCap)
	}

	// Translate the answer back to the asker's language.
	translateCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	answer = p.normalizer.TranslateBack(translateCtx, answer, nq.DetectedLanguage)
	cancel()

	return answer, nil
}

func (p *Pipeline) runNormalize(ctx context.Context, q types.Query) (types.NormalizedQuery, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()
	return p.normalizer.Normalize(stageCtx, q)
}

// gather runs the weather and retrieval stages concurrently. Weather
// runs for weather and hybrid intents; retrieval for everything except
// pure weather questions. Weather failures degrade; retrieval fails
// hard only when the index is not ready.
func (p *Pipeline) gather(ctx context.Context, nq types.NormalizedQuery, intent types.Intent,
	entities types.EntitySet, window types.TimeRange, options queryOptions) (*types.WeatherContext, *types.RetrievalResult, []string, error) {

	needWeather := intent == types.IntentWeather || intent == types.IntentHybrid
	needKnowledge := intent != types.IntentWeather

	var (
		wx            *types.WeatherContext
		rr            *types.RetrievalResult
		weatherNote   string
		knowledgeNote string
	)

	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(stageCtx)

	if needWeather {
		candidates := p.locationCandidates(entities, options)
		g.Go(func() error {
			fetched, err := p.weather.Fetch(gctx, candidates, window)
			if err != nil {
				switch {
				case errors.Is(err, types.ErrLocationUnresolved):
					log.Printf("Warning: no location resolved for query %s: %v", nq.ID, err)
					weatherNote = "location could not be resolved; weather omitted"
				case errors.Is(err, types.ErrWeatherUnavailable):
					log.Printf("Warning: weather unavailable for query %s: %v", nq.ID, err)
					weatherNote = "weather providers unavailable; weather omitted"
				default:
					log.Printf("Warning: weather fetch failed for query %s: %v", nq.ID, err)
					weatherNote = "weather lookup failed; weather omitted"
				}
				return nil
			}
			wx = fetched
			return nil
		})
	}

	if needKnowledge {
		g.Go(func() error {
			result, err := p.retriever.Retrieve(gctx, nq.CanonicalText, options.topK)
			if err != nil {
				if errors.Is(err, types.ErrIndexNotReady) {
					return fmt.Errorf("knowledge index: %w", err)
				}
				log.Printf("Warning: retrieval failed for query %s: %v", nq.ID, err)
				knowledgeNote = "knowledge retrieval failed; answered without corpus context"
				return nil
			}
			rr = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	var degradations []string
	if weatherNote != "" {
		degradations = append(degradations, weatherNote)
	}
	if knowledgeNote != "" {
		degradations = append(degradations, knowledgeNote)
	}
	return wx, rr, degradations, nil
}

// locationCandidates orders the locations to try geocoding: explicit
// hint first, then locations extracted from the query, then the
// configured default.
func (p *Pipeline) locationCandidates(entities types.EntitySet, options queryOptions) []string {
	var candidates []string
	if options.locationHint != "" {
		candidates = append(candidates, options.locationHint)
	}
	candidates = append(candidates, entities.Locations()...)
	if p.defaultLocation != "" {
		candidates = append(candidates, p.defaultLocation)
	}
	return candidates
}
