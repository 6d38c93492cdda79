// Package services wires the core together. Everything is constructed once
// at process start and passed down explicitly; there is no ambient service
// lookup.
package services

import (
	"fmt"

	"github.com/paideia-labs/paideia/internal/agents"
	"github.com/paideia-labs/paideia/internal/config"
	openaiinfra "github.com/paideia-labs/paideia/internal/infrastructure/openai"
	redisinfra "github.com/paideia-labs/paideia/internal/infrastructure/redis"
	"github.com/paideia-labs/paideia/internal/services/events"
	"github.com/paideia-labs/paideia/internal/services/orchestrator"
	"github.com/paideia-labs/paideia/internal/services/prompt"
	"github.com/paideia-labs/paideia/internal/services/session"
	"github.com/paideia-labs/paideia/internal/services/stage"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Store        redisinfra.Store
	Bus          *events.Service
	Prompts      *prompt.Service
	Sessions     *session.Service
	Machine      *stage.Machine
	Orchestrator *orchestrator.Service
}

// Initialize builds all required services in dependency order.
func Initialize() (*Services, error) {
	log.Info().Msg("Initializing core services")

	store := redisinfra.NewStore(config.GetRedisURL(), config.GetRedisPassword())
	bus := events.NewService(store, config.GetProgressEventsTTL(), config.GetAnswerEventsTTL())
	sessions := session.NewService(store, config.GetSessionTTL())

	agentsCfg, err := config.LoadAgentsConfig(config.GetAgentsConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load agents config: %w", err)
	}
	prompts := prompt.NewService(agentsCfg, config.PromptDebugEnabled())

	openAIService, err := openaiinfra.NewService(config.GetOpenAIKey())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI service: %w", err)
	}

	machine := stage.NewMachine()
	orch := orchestrator.NewService(
		machine,
		bus,
		sessions,
		agents.NewClassifier(openAIService, prompts),
		agents.NewClarifier(openAIService, prompts),
		agents.NewAnswerer(openAIService, prompts),
		agents.NewEvaluator(openAIService, prompts),
		agents.NewSummarizer(openAIService, prompts),
	)

	log.Info().Msg("All services initialized successfully")

	return &Services{
		Store:        store,
		Bus:          bus,
		Prompts:      prompts,
		Sessions:     sessions,
		Machine:      machine,
		Orchestrator: orch,
	}, nil
}

// Close releases shared resources.
func (s *Services) Close() error {
	return s.Store.Close()
}
