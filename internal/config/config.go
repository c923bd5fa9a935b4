// Package config provides configuration management for agroqa.
// It loads settings from environment variables with the AGROQA_ prefix
// and provides sensible defaults for all configuration options.
//
// User settings (e.g., default_location) are persisted to the settings
// table in the database. LoadConfigFromDB reads from the database first
// and falls back to environment variables. SaveConfig writes user
// settings to the database.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration settings for the agroqa pipeline.
type Config struct {
	Pipeline  PipelineConfig
	LLM       LLMConfig
	Translate TranslateConfig
	Weather   WeatherConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	User      UserConfig
}

// PipelineConfig contains cross-stage pipeline settings.
type PipelineConfig struct {
	WorkingLanguage string        // Canonical working language code (default: en)
	StageTimeout    time.Duration // Per-stage timeout (default: 20s)
	ConfidenceCap   float64       // Upper bound for answer confidence (default: 0.95)
	FallbackCap     float64       // Confidence ceiling for deterministic fallback answers (default: 0.45)
}

// LLMConfig contains completion and embedding provider configuration.
type LLMConfig struct {
	Provider             string // LLM provider: ollama, openai (default: ollama)
	OllamaURL            string // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string // Ollama model name for completions (default: qwen2.5:7b)
	OllamaEmbeddingModel string // Ollama model name for embeddings (default: nomic-embed-text)
	OpenAIAPIKey         string // OpenAI API key
	OpenAIModel          string // OpenAI model name (default: gpt-4o-mini)
	OpenAIEmbeddingModel string // OpenAI embedding model name (default: text-embedding-3-small)
	AnthropicAPIKey      string // Anthropic API key
	AnthropicModel       string // Anthropic model name (default: claude-haiku-4-5-20251001)
	CompletionTimeout    time.Duration // Completion call timeout (default: 60s)
	EmbeddingTimeout     time.Duration // Embedding call timeout (default: 30s)
}

// TranslateConfig contains translation capability configuration.
type TranslateConfig struct {
	BaseURL string        // Translation API base URL (default: https://translation.googleapis.com)
	APIKey  string        // Translation API key
	Timeout time.Duration // Translation call timeout (default: 10s)
}

// WeatherConfig contains geocoding and weather provider configuration.
type WeatherConfig struct {
	// Providers lists enabled providers in priority order, highest
	// first. Reconciliation of overlapping fields follows this order.
	// (default: open-meteo,visual-crossing,nasa-power)
	Providers []string

	GeocodeURL           string        // Geocoding API base URL (default: https://geocoding-api.open-meteo.com)
	OpenMeteoURL         string        // Open-Meteo forecast base URL (default: https://api.open-meteo.com)
	VisualCrossingURL    string        // Visual Crossing base URL (default: https://weather.visualcrossing.com)
	VisualCrossingAPIKey string        // Visual Crossing API key
	NASAPowerURL         string        // NASA POWER base URL (default: https://power.larc.nasa.gov)
	ProviderTimeout      time.Duration // Per-provider call timeout (default: 15s)
	MaxRetries           int           // Retry attempts per provider call (default: 2)
	CacheTTL             time.Duration // Weather cache entry lifetime (default: 5m)
	GeocodeCacheTTL      time.Duration // Geocode cache entry lifetime (default: 1h)
	CacheSize            int           // Max cached weather entries (default: 512)
	RateLimit            float64       // Outbound calls per second per provider (default: 5)
	RateBurst            int           // Outbound burst per provider (default: 10)
}

// RetrievalConfig contains corpus and vector index configuration.
type RetrievalConfig struct {
	CorpusPath     string  // Directory of source documents (default: ./corpus)
	ChunkSize      int     // Chunk size in tokens (default: 150)
	ChunkOverlap   int     // Chunk overlap in tokens (default: 30)
	EmbedBatchSize int     // Embedding batch size during builds (default: 64)
	MaxChunks      int     // Upper bound on indexed chunks (default: 15000)
	TopK           int     // Default number of results per query (default: 10)
	MinSimilarity  float64 // Similarity floor; lower scores are dropped (default: 0.2)
	MinHorizonDays int     // Minimum resolvable time span in days (default: 1)
	MaxHorizonDays int     // Maximum resolvable time span in days (default: 120)
	DefaultWindow  int     // Window in days when no temporal expression found (default: 1)
	WatchCorpus    bool    // Rebuild automatically when corpus files change (default: false)
}

// StorageConfig contains corpus artifact storage configuration.
type StorageConfig struct {
	Engine      string // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string // Path to data directory for sqlite (default: ./data)
	PostgresDSN string // Postgres connection string when Engine is postgres
}

// UserConfig contains user-specific settings that persist across restarts.
// These settings are stored in the settings table in the database.
type UserConfig struct {
	// DefaultLocation is the location assumed when a query names none.
	// Env var: AGROQA_DEFAULT_LOCATION
	// Database key: default_location
	DefaultLocation string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the AGROQA_ prefix. User
// settings (UserConfig) are loaded from environment variables only; use
// LoadConfigFromDB to also read persisted user settings.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()
	return cfg, nil
}

// LoadConfigFromDB loads configuration from both environment variables
// and the database. The database value takes precedence over the
// environment variable for user settings.
//
// Returns an error if db is nil.
func LoadConfigFromDB(db *sql.DB) (*Config, error) {
	if db == nil {
		return nil, errors.New("config: database connection is required")
	}

	cfg := buildBaseConfig()

	location, err := getSetting(db, "default_location")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config: failed to load default_location from database: %w", err)
	}

	if location != "" {
		cfg.User.DefaultLocation = location
	}

	return cfg, nil
}

// SaveConfig persists user configuration settings to the settings table
// using upsert semantics so they survive restarts.
//
// Returns an error if db is nil.
func (c *Config) SaveConfig(db *sql.DB) error {
	if db == nil {
		return errors.New("config: database connection is required")
	}

	if err := setSetting(db, "default_location", c.User.DefaultLocation); err != nil {
		return fmt.Errorf("config: failed to save default_location: %w", err)
	}

	return nil
}

// getSetting retrieves a single setting value by key from the settings table.
// Returns an empty string and sql.ErrNoRows if the key does not exist.
func getSetting(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// setSetting writes a key-value pair to the settings table using upsert semantics.
func setSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// buildBaseConfig constructs a Config with values from environment
// variables and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			WorkingLanguage: getEnv("AGROQA_WORKING_LANGUAGE", "en"),
			StageTimeout:    getEnvDuration("AGROQA_STAGE_TIMEOUT", 20*time.Second),
			ConfidenceCap:   getEnvFloat("AGROQA_CONFIDENCE_CAP", 0.95),
			FallbackCap:     getEnvFloat("AGROQA_FALLBACK_CONFIDENCE_CAP", 0.45),
		},
		LLM: LLMConfig{
			Provider:             getEnv("AGROQA_LLM_PROVIDER", "ollama"),
			OllamaURL:            getEnv("AGROQA_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("AGROQA_OLLAMA_MODEL", "qwen2.5:7b"),
			OllamaEmbeddingModel: getEnv("AGROQA_OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:         getEnv("AGROQA_OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("AGROQA_OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIEmbeddingModel: getEnv("AGROQA_OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			AnthropicAPIKey:      getEnv("AGROQA_ANTHROPIC_API_KEY", ""),
			AnthropicModel:       getEnv("AGROQA_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
			CompletionTimeout:    getEnvDuration("AGROQA_COMPLETION_TIMEOUT", 60*time.Second),
			EmbeddingTimeout:     getEnvDuration("AGROQA_EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Translate: TranslateConfig{
			BaseURL: getEnv("AGROQA_TRANSLATE_URL", "https://translation.googleapis.com"),
			APIKey:  getEnv("AGROQA_TRANSLATE_API_KEY", ""),
			Timeout: getEnvDuration("AGROQA_TRANSLATE_TIMEOUT", 10*time.Second),
		},
		Weather: WeatherConfig{
			Providers:            getEnvList("AGROQA_WEATHER_PROVIDERS", []string{"open-meteo", "visual-crossing", "nasa-power"}),
			GeocodeURL:           getEnv("AGROQA_GEOCODE_URL", "https://geocoding-api.open-meteo.com"),
			OpenMeteoURL:         getEnv("AGROQA_OPEN_METEO_URL", "https://api.open-meteo.com"),
			VisualCrossingURL:    getEnv("AGROQA_VISUAL_CROSSING_URL", "https://weather.visualcrossing.com"),
			VisualCrossingAPIKey: getEnv("AGROQA_VISUAL_CROSSING_API_KEY", ""),
			NASAPowerURL:         getEnv("AGROQA_NASA_POWER_URL", "https://power.larc.nasa.gov"),
			ProviderTimeout:      getEnvDuration("AGROQA_WEATHER_TIMEOUT", 15*time.Second),
			MaxRetries:           getEnvInt("AGROQA_WEATHER_RETRIES", 2),
			CacheTTL:             getEnvDuration("AGROQA_WEATHER_CACHE_TTL", 5*time.Minute),
			GeocodeCacheTTL:      getEnvDuration("AGROQA_GEOCODE_CACHE_TTL", time.Hour),
			CacheSize:            getEnvInt("AGROQA_WEATHER_CACHE_SIZE", 512),
			RateLimit:            getEnvFloat("AGROQA_WEATHER_RATE_LIMIT", 5),
			RateBurst:            getEnvInt("AGROQA_WEATHER_RATE_BURST", 10),
		},
		Retrieval: RetrievalConfig{
			CorpusPath:     getEnv("AGROQA_CORPUS_PATH", "./corpus"),
			ChunkSize:      getEnvInt("AGROQA_CHUNK_SIZE", 150),
			ChunkOverlap:   getEnvInt("AGROQA_CHUNK_OVERLAP", 30),
			EmbedBatchSize: getEnvInt("AGROQA_EMBED_BATCH_SIZE", 64),
			MaxChunks:      getEnvInt("AGROQA_MAX_CHUNKS", 15000),
			TopK:           getEnvInt("AGROQA_TOP_K", 10),
			MinSimilarity:  getEnvFloat("AGROQA_MIN_SIMILARITY", 0.2),
			MinHorizonDays: getEnvInt("AGROQA_MIN_HORIZON_DAYS", 1),
			MaxHorizonDays: getEnvInt("AGROQA_MAX_HORIZON_DAYS", 120),
			DefaultWindow:  getEnvInt("AGROQA_DEFAULT_WINDOW_DAYS", 1),
			WatchCorpus:    getEnvBool("AGROQA_WATCH_CORPUS", false),
		},
		Storage: StorageConfig{
			Engine:      getEnv("AGROQA_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("AGROQA_DATA_PATH", "./data"),
			PostgresDSN: getEnv("AGROQA_POSTGRES_DSN", ""),
		},
		User: UserConfig{
			DefaultLocation: getEnv("AGROQA_DEFAULT_LOCATION", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as a float,
// it returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "30s", "5m") or returns a default value on absence or
// parse failure.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a slice,
// trimming whitespace around each element.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
