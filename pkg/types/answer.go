package types

import "time"

// Answer is the final structured response for one query. Constructed
// once per query, never mutated after construction.
type Answer struct {
	// ID uniquely identifies the answer
	ID string `json:"id"`

	// QueryID links the answer back to the query it serves
	QueryID string `json:"query_id"`

	// Text is the answer's natural-language text, in Language
	Text string `json:"text"`

	// Language is the language code of Text
	Language string `json:"language"`

	// Intent is the classified intent the answer addressed
	Intent Intent `json:"intent"`

	// Confidence orders answer quality in [0, 1]. It is a monotonic
	// signal, not a calibrated probability.
	Confidence float64 `json:"confidence"`

	// Sources lists the source identifiers of every knowledge chunk
	// actually included in the grounding context
	Sources []string `json:"sources,omitempty"`

	// Weather carries the fused weather context when one was obtained
	Weather *WeatherContext `json:"weather,omitempty"`

	// Fallback is set when the completion capability failed and the
	// answer was assembled deterministically instead
	Fallback bool `json:"fallback,omitempty"`

	// TranslationDegraded is set when translating the answer back to
	// the query's language failed and the working-language text was
	// returned instead
	TranslationDegraded bool `json:"translation_degraded,omitempty"`

	// Degradations lists human-readable notes about data sources that
	// failed or were skipped while producing this answer
	Degradations []string `json:"degradations,omitempty"`

	// GeneratedAt is when composition finished
	GeneratedAt time.Time `json:"generated_at"`
}
