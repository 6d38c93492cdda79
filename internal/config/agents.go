package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TemplateDefinition is one named prompt template: a system part and a user
// part, both with {placeholder} substitution applied at build time.
type TemplateDefinition struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// AgentSection is the configuration block for one agent: free-form settings
// and guidelines that feed the template variable set, plus the agent's
// named templates.
type AgentSection struct {
	Settings   map[string]interface{}        `yaml:"settings"`
	Guidelines map[string]interface{}        `yaml:"guidelines"`
	Templates  map[string]TemplateDefinition `yaml:"templates"`
}

// AgentsConfig maps agent name to its configuration section. Read-only
// after load; safely shared across all concurrent conversations.
type AgentsConfig map[string]AgentSection

// GetAgentsConfigPath returns the path to the agents configuration file.
func GetAgentsConfigPath() string {
	return GetEnvOrDefault("AGENTS_CONFIG_PATH", "configs/agents.yaml")
}

// LoadAgentsConfig reads and parses the agent configuration file.
func LoadAgentsConfig(configPath string) (AgentsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents config: %w", err)
	}

	var cfg AgentsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agents config: %w", err)
	}

	return cfg, nil
}
