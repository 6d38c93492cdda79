// Package openai holds the language-model provider client. The model call
// itself is an opaque boundary: agents get a client and own their prompts.
package openai

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// ErrMissingKey is returned when no API key is configured. The provider is
// required for core functionality, so main treats this as fatal.
var ErrMissingKey = errors.New("openai: API key not configured")

type Service struct {
	mu     sync.RWMutex
	client *openai.Client
}

func NewService(key string) (*Service, error) {
	log.Info().Msg("Initializing OpenAI service")

	if key == "" {
		return nil, ErrMissingKey
	}

	return &Service{
		client: openai.NewClient(key),
	}, nil
}

func (s *Service) GetClient() *openai.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}
