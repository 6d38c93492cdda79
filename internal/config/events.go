package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Progress events are short-lived telemetry; answer events keep a longer
// window so a slow consumer can still replay the stream.
const (
	defaultProgressEventsTTL = 5 * time.Minute
	defaultAnswerEventsTTL   = 30 * time.Minute
)

func GetProgressEventsTTL() time.Duration {
	return getDurationOrDefault("PROGRESS_EVENTS_TTL", defaultProgressEventsTTL)
}

func GetAnswerEventsTTL() time.Duration {
	return getDurationOrDefault("ANSWER_EVENTS_TTL", defaultAnswerEventsTTL)
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := GetEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().
			Str("key", key).
			Str("value", raw).
			Dur("default", defaultValue).
			Msg("Invalid duration value - falling back to default")
		return defaultValue
	}
	return d
}
