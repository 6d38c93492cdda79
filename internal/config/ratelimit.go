package config

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimitConfig bounds question submissions per client. Disabled unless
// explicitly enabled, so local development never sees 429s.
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	MaxHits int
}

func GetQuestionRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Enabled: GetEnvOrDefault("RATE_LIMIT_ENABLED", "false") == "true",
		Window:  getDurationOrDefault("RATE_LIMIT_WINDOW", time.Minute),
		MaxHits: getIntOrDefault("RATE_LIMIT_MAX_QUESTIONS", 10),
	}
}

func getIntOrDefault(key string, defaultValue int) int {
	raw := GetEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Warn().
			Str("key", key).
			Str("value", raw).
			Int("default", defaultValue).
			Msg("Invalid integer value - falling back to default")
		return defaultValue
	}
	return n
}
