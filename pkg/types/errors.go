package types

import "errors"

// Pipeline error taxonomy. Only ErrInvalidInput and ErrIndexNotReady
// surface to callers as hard failures; every other condition degrades
// the answer instead of aborting the pipeline. Match with errors.Is.
var (
	// ErrInvalidInput indicates a malformed or empty query, rejected
	// before any external call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTranslationFailed indicates the translation capability failed.
	// Non-fatal: the pipeline continues with the untranslated text and
	// flags the result as degraded.
	ErrTranslationFailed = errors.New("translation failed")

	// ErrLocationUnresolved indicates every location candidate failed
	// geocoding. Weather context is omitted and the pipeline continues
	// with a knowledge-only answer.
	ErrLocationUnresolved = errors.New("location unresolved")

	// ErrWeatherUnavailable indicates all weather providers failed for
	// a resolved location. Same degraded continuation as above.
	ErrWeatherUnavailable = errors.New("weather unavailable")

	// ErrIndexNotReady indicates the retrieval engine has not finished
	// building its index. Caller-visible and retryable.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrCompletionFailed indicates the completion capability failed;
	// the composer falls back to a deterministic answer with capped
	// confidence.
	ErrCompletionFailed = errors.New("completion failed")
)
