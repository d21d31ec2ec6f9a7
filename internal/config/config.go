package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the cross-cutting knobs. Per-provider settings (base URLs,
// rate limits, cache TTLs) live in each provider's own ConfigFromEnv.
type Config struct {
	OpenAIAPIKey string
	NewsDBPath   string
	MaxArticles  int
	StaleAfter   time.Duration
	OverviewTTL  time.Duration
}

func Load() *Config {
	return &Config{
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		NewsDBPath:   getEnv("NEWS_DB_PATH", "econpulse-news.db"),
		MaxArticles:  getEnvAsInt("NEWS_MAX_ARTICLES", 30),
		StaleAfter:   getEnvAsDuration("NEWS_STALE_AFTER", 30*time.Minute),
		OverviewTTL:  getEnvAsDuration("OVERVIEW_TTL", 60*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
