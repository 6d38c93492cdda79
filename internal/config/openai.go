package config

// GetOpenAIKey returns the configured OpenAI key. The key is required for
// core functionality; main fails startup when it is missing.
func GetOpenAIKey() string {
	return GetEnvOrDefault("OPENAI_KEY", "")
}
