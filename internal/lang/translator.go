package lang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vruksh/agroqa/internal/breaker"
)

// Translator is the translation capability consumed by the pipeline.
// Implementations must honor context cancellation and may fail; callers
// degrade rather than abort on failure.
type Translator interface {
	// Translate converts text from the source language to the target
	// language. Source may be empty to let the backend detect it.
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// GoogleTranslatorConfig holds configuration for the Google Translate
// v2 REST client.
type GoogleTranslatorConfig struct {
	APIKey  string
	BaseURL string        // default: https://translation.googleapis.com
	Timeout time.Duration // default: 10s
}

// GoogleTranslator implements Translator against the Google Translate
// v2 REST API, wrapped with circuit breaker protection.
type GoogleTranslator struct {
	cfg            GoogleTranslatorConfig
	client         *http.Client
	circuitBreaker *breaker.CircuitBreaker
}

// NewGoogleTranslator creates a Google Translate client.
func NewGoogleTranslator(cfg GoogleTranslatorConfig) *GoogleTranslator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://translation.googleapis.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &GoogleTranslator{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: breaker.New("translate"),
	}
}

// translateResponse is the response body from POST /language/translate/v2.
type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate converts text between languages. Identical source and
// target is a no-op that skips the network entirely.
func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("translate: empty text")
	}
	if source == target {
		return text, nil
	}

	result, err := g.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return g.translate(ctx, text, source, target)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return "", fmt.Errorf("translate circuit breaker open: %w", err)
		}
		return "", err
	}
	return result.(string), nil
}

func (g *GoogleTranslator) translate(ctx context.Context, text, source, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("q", text)
	form.Set("target", target)
	form.Set("format", "text")
	form.Set("key", g.cfg.APIKey)
	if source != "" {
		form.Set("source", source)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		g.cfg.BaseURL+"/language/translate/v2", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("translate returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Data.Translations) == 0 {
		return "", errors.New("translate returned no translations")
	}

	return respData.Data.Translations[0].TranslatedText, nil
}

// Compile-time assertion.
var _ Translator = (*GoogleTranslator)(nil)
