// Package types defines the core data structures for the agroqa answering
// pipeline. These types represent queries, extracted intents and entities,
// resolved time ranges, weather context, retrieval results, and the final
// answer returned to callers.
package types

import (
	"time"
)

// Intent classifies what a query is asking for.
type Intent string

// Intent constants. Classification is a closed-set decision; ties and
// low-confidence results map to IntentHybrid so downstream stages still
// receive both weather and knowledge context.
const (
	// IntentWeather indicates a pure weather/forecast question
	IntentWeather Intent = "weather"

	// IntentAgriAdvice indicates an agronomy question (crops, soil, pests, practices)
	IntentAgriAdvice Intent = "agricultural_advice"

	// IntentHybrid indicates a question needing both weather and knowledge context
	IntentHybrid Intent = "hybrid"

	// IntentUnknown indicates no recognizable intent; never an error
	IntentUnknown Intent = "unknown"
)

// Valid reports whether the intent is one of the closed enumeration values.
func (i Intent) Valid() bool {
	switch i {
	case IntentWeather, IntentAgriAdvice, IntentHybrid, IntentUnknown:
		return true
	}
	return false
}

// EntityType identifies the kind of an extracted entity.
type EntityType string

// Entity type constants.
const (
	// EntityLocation is a place mention (city, district, region)
	EntityLocation EntityType = "location"

	// EntityCrop is a crop or plant mention
	EntityCrop EntityType = "crop"

	// EntityParameter is a measured-field mention (temperature, humidity, ...)
	EntityParameter EntityType = "parameter"
)

// EntitySet maps entity types to the values extracted from a query.
// A query may yield zero, one, or many values per type. Values are free
// text in extraction order; they are not validated against a gazetteer.
type EntitySet map[EntityType][]string

// Add appends values of the given type, skipping duplicates while
// preserving first-seen order.
func (s EntitySet) Add(t EntityType, values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		exists := false
		for _, have := range s[t] {
			if have == v {
				exists = true
				break
			}
		}
		if !exists {
			s[t] = append(s[t], v)
		}
	}
}

// Values returns the extracted values of the given type, possibly empty.
func (s EntitySet) Values(t EntityType) []string {
	return s[t]
}

// Locations returns all extracted location mentions in extraction order.
func (s EntitySet) Locations() []string { return s[EntityLocation] }

// Crops returns all extracted crop mentions in extraction order.
func (s EntitySet) Crops() []string { return s[EntityCrop] }

// Parameters returns all extracted measured-field mentions.
func (s EntitySet) Parameters() []string { return s[EntityParameter] }

// TimeRange is a resolved absolute date range, both bounds inclusive.
// Bounds are day-granular and stored at midnight UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange builds a TimeRange from two bounds, swapping them when
// inverted so Start <= End always holds. Both bounds are truncated to
// midnight UTC.
func NewTimeRange(start, end time.Time) TimeRange {
	start = Day(start)
	end = Day(end)
	if end.Before(start) {
		start, end = end, start
	}
	return TimeRange{Start: start, End: end}
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days returns the inclusive day count covered by the range.
// A single-day range reports 1.
func (r TimeRange) Days() int {
	if r.IsZero() {
		return 0
	}
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// IsZero reports whether the range is unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Key returns a stable textual form of the range suitable for cache keys,
// e.g. "2024-01-15_2024-01-20".
func (r TimeRange) Key() string {
	return r.Start.Format("2006-01-02") + "_" + r.End.Format("2006-01-02")
}

// Query is a raw inbound question. Immutable once constructed.
type Query struct {
	// ID uniquely identifies this query instance
	ID string `json:"id"`

	// Text is the raw query text as received
	Text string `json:"text"`

	// Language is the caller-declared language code, empty when undeclared
	Language string `json:"language,omitempty"`

	// LocationHint is an optional caller-supplied location override
	LocationHint string `json:"location_hint,omitempty"`

	// UserID optionally identifies the caller
	UserID string `json:"user_id,omitempty"`

	// ReceivedAt is when the query entered the pipeline
	ReceivedAt time.Time `json:"received_at"`
}

// NormalizedQuery is a Query carried into the working language.
// CanonicalText is always in the working language regardless of the
// input language; when translation fails the original text passes
// through with TranslationDegraded set.
type NormalizedQuery struct {
	Query

	// CanonicalText is the query text in the working language
	CanonicalText string `json:"canonical_text"`

	// DetectedLanguage is the detected source language code
	DetectedLanguage string `json:"detected_language"`

	// DetectionConfidence is the language-detection confidence (0.0 to 1.0)
	DetectionConfidence float64 `json:"detection_confidence"`

	// TranslationDegraded is set when translation to the working
	// language failed and the original text was passed through
	TranslationDegraded bool `json:"translation_degraded,omitempty"`
}
