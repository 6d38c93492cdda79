package config

import "time"

const defaultSessionTTL = time.Hour

// GetSessionTTL is the retention window for conversation session records.
func GetSessionTTL() time.Duration {
	return getDurationOrDefault("SESSION_TTL", defaultSessionTTL)
}
