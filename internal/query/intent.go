// Package query turns normalized query text into structured meaning:
// a closed-set intent, an entity set (locations, crops, parameters),
// and an absolute time range. None of these operations call external
// services; they never fail for well-formed text.
package query

import (
	"regexp"
	"strings"

	"github.com/vruksh/agroqa/pkg/types"
)

// Keyword weights per intent family. Weather terms score higher than
// agricultural terms so "will it rain on my wheat" still leans hybrid
// rather than collapsing into advice.
var (
	weatherKeywords = map[string]float64{
		"weather": 0.7, "forecast": 0.7, "rain": 0.7, "raining": 0.7,
		"rainy": 0.7, "rainfall": 0.7, "temperature": 0.7, "climate": 0.6,
		"sunny": 0.6, "cloudy": 0.6, "hot": 0.4, "cold": 0.4,
		"humid": 0.5, "humidity": 0.6, "dry": 0.4, "wind": 0.5,
		"windy": 0.5, "storm": 0.6, "drizzle": 0.6, "precipitation": 0.7,
		"monsoon": 0.7, "frost": 0.6, "heatwave": 0.6,
	}

	agriKeywords = map[string]float64{
		"crop": 0.6, "crops": 0.6, "harvest": 0.6, "plant": 0.5,
		"planting": 0.6, "seed": 0.5, "seeds": 0.5, "sow": 0.6,
		"sowing": 0.6, "agriculture": 0.6, "farming": 0.6, "farm": 0.4,
		"yield": 0.6, "grow": 0.5, "growing": 0.5, "irrigation": 0.6,
		"irrigate": 0.6, "fertilizer": 0.6, "fertilizing": 0.6,
		"pest": 0.6, "pests": 0.6, "pesticide": 0.6, "disease": 0.5,
		"soil": 0.5, "nutrient": 0.5, "cultivation": 0.6, "variety": 0.4,
		"weeding": 0.5, "pruning": 0.5, "mulching": 0.5, "spraying": 0.5,
	}
)

// Pattern matches add weight on top of keywords; they catch phrasings
// a bare keyword scan misses ("how's the weather", "how to grow").
var (
	weatherPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:how|what)(?:'s| is| will)?.*\bweather\b`),
		regexp.MustCompile(`\bwill it (?:rain|snow|storm)\b`),
		regexp.MustCompile(`\b(?:forecast|temperature) (?:for|in|of)\b`),
	}

	agriPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bhow to (?:grow|plant|sow|harvest|irrigate|control)\b`),
		regexp.MustCompile(`\b(?:best|which|what) (?:crop|seed|variety|fertilizer)\b`),
		regexp.MustCompile(`\bwhen (?:to|should i) (?:plant|sow|harvest|spray|irrigate)\b`),
	}
)

// Scoring thresholds. A family must clear scoreThreshold to claim the
// intent outright; when both families clear it, or the margin between
// them is below tieMargin, the result is hybrid.
const (
	scoreThreshold = 0.5
	tieMargin      = 0.3
)

// Classify determines the query's intent and extracts its entities in
// one pass. It never errors: text with no recognizable signal yields
// IntentUnknown and an empty (non-nil) entity set.
func Classify(text string) (types.Intent, types.EntitySet) {
	return ClassifyIntent(text), ExtractEntities(text)
}

// ClassifyIntent scores the text against the weather and agricultural
// keyword families and maps the outcome onto the closed intent set.
// Ties and low-margin results default to hybrid so downstream stages
// are not starved of context.
func ClassifyIntent(text string) types.Intent {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})

	var weatherScore, agriScore float64
	for _, w := range words {
		weatherScore += weatherKeywords[w]
		agriScore += agriKeywords[w]
	}
	for _, p := range weatherPatterns {
		if p.MatchString(lower) {
			weatherScore += 0.6
		}
	}
	for _, p := range agriPatterns {
		if p.MatchString(lower) {
			agriScore += 0.6
		}
	}

	weatherHit := weatherScore >= scoreThreshold
	agriHit := agriScore >= scoreThreshold

	switch {
	case weatherHit && agriHit:
		return types.IntentHybrid
	case weatherHit:
		if agriScore > 0 && weatherScore-agriScore < tieMargin {
			return types.IntentHybrid
		}
		return types.IntentWeather
	case agriHit:
		if weatherScore > 0 && agriScore-weatherScore < tieMargin {
			return types.IntentHybrid
		}
		return types.IntentAgriAdvice
	case weatherScore > 0 || agriScore > 0:
		// Some signal but nothing conclusive.
		return types.IntentHybrid
	default:
		return types.IntentUnknown
	}
}
