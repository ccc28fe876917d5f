package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Generative backend
	OpenAIKey     string
	OpenAIBaseURL string
	IntentModel   string
	SynthModel    string
	LLMTimeout    time.Duration

	// Catalog matcher acceptance thresholds (0-100 similarity scale)
	PrimaryThreshold  int
	FallbackThreshold int

	// Enrichment
	EnrichTimeout  time.Duration
	WeatherBaseURL string
	ReportsBaseURL string // empty disables trip-report enrichment
	ReportsDays    int

	// Assistant identity and gate
	AssistantName  string
	TriggerPhrases []string // empty means the built-in set

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/hikebot.db"),
		RedisURL:    os.Getenv("REDIS_URL"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		IntentModel:   getEnv("LLM_INTENT_MODEL", "gpt-4o-mini"),
		SynthModel:    getEnv("LLM_SYNTH_MODEL", "gpt-4o"),
		LLMTimeout:    getDuration("LLM_TIMEOUT", 30*time.Second),

		PrimaryThreshold:  getInt("MATCH_PRIMARY_THRESHOLD", 70),
		FallbackThreshold: getInt("MATCH_FALLBACK_THRESHOLD", 50),

		EnrichTimeout:  getDuration("ENRICH_TIMEOUT", 10*time.Second),
		WeatherBaseURL: getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		ReportsBaseURL: os.Getenv("REPORTS_BASE_URL"),
		ReportsDays:    getInt("REPORTS_DAYS", 7),

		AssistantName:    getEnv("ASSISTANT_NAME", "HikeBot"),
		TriggerPhrases:   splitList(os.Getenv("TRIGGER_PHRASES")),
		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	// In production, require a durable database
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// splitList parses a comma-separated env value, trimming blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
