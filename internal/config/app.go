package config

func GetPort() string {
	return GetEnvOrDefault("PORT", "8080")
}

// IsProduction reports whether the service runs with the production flag set.
func IsProduction() bool {
	return GetEnvOrDefault("APP_ENV", "development") == "production"
}

// PromptDebugEnabled controls verbose logging of rendered prompts. Disabled
// by default, and force-disabled in production regardless of the toggle.
func PromptDebugEnabled() bool {
	if IsProduction() {
		return false
	}
	return GetEnvOrDefault("PROMPT_DEBUG", "false") == "true"
}
