// Package session persists per-conversation state between learner turns:
// the active stage, the clarification loop position, and the accumulated
// clarification context. Backed by the shared store when reachable, by
// process memory otherwise. It also issues the jwt stream tokens that
// authorize the websocket stream endpoint.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/paideia-labs/paideia/internal/config"
	"github.com/paideia-labs/paideia/internal/domain/conversation"
	redisinfra "github.com/paideia-labs/paideia/internal/infrastructure/redis"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "conversation:"

// ErrNotFound is returned when no conversation exists for the session id.
var ErrNotFound = errors.New("session: conversation not found")

// Conversation is the persisted state of one learner conversation. The
// stage is owned by the state machine and mutated only through the
// orchestrator's transitions.
type Conversation struct {
	SessionID    string             `json:"session_id"`
	RequestID    string             `json:"request_id"`
	Stage        conversation.Stage `json:"stage"`
	Question     string             `json:"question"`
	ClarifyIndex int                `json:"clarify_index"`
	ClarifyTotal int                `json:"clarify_total"`
	Context      []string           `json:"context,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ContextText folds the accumulated clarification exchanges into one block
// for prompt building.
func (c *Conversation) ContextText() string {
	return strings.Join(c.Context, "\n")
}

// ConversationStore abstracts where conversations live.
type ConversationStore interface {
	Set(ctx context.Context, sessionID string, conv *Conversation) error
	Get(ctx context.Context, sessionID string) (*Conversation, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisStore keeps conversations in the shared store with a TTL.
type RedisStore struct {
	store redisinfra.Store
	ttl   time.Duration
}

// MemoryStore keeps conversations in process memory. Used when the shared
// store is unreachable so stage progression keeps working without it.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

type Service struct {
	store ConversationStore
}

// NewService picks the backing store: the shared store when it answers a
// ping, memory otherwise.
func NewService(store redisinfra.Store, ttl time.Duration) *Service {
	if err := store.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Store unreachable - keeping conversations in memory")
		return &Service{store: newMemoryStore()}
	}
	return &Service{store: &RedisStore{store: store, ttl: ttl}}
}

func newMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*Conversation)}
}

func (rs *RedisStore) Set(ctx context.Context, sessionID string, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return rs.store.Set(ctx, keyPrefix+sessionID, string(data), rs.ttl)
}

func (rs *RedisStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	data, err := rs.store.Get(ctx, keyPrefix+sessionID)
	if errors.Is(err, redisinfra.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (rs *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return rs.store.Delete(ctx, keyPrefix+sessionID)
}

func (ms *MemoryStore) Set(ctx context.Context, sessionID string, conv *Conversation) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.conversations[sessionID] = conv
	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	conv, exists := ms.conversations[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (ms *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.conversations, sessionID)
	return nil
}

// GetOrCreate loads the conversation for sessionID, creating a fresh one in
// the initial stage when none exists. An empty sessionID gets a generated
// one.
func (s *Service) GetOrCreate(ctx context.Context, sessionID string) (*Conversation, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conv, err := s.store.Get(ctx, sessionID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = &Conversation{
		SessionID: sessionID,
		Stage:     conversation.StageInitialQuestion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Set(ctx, sessionID, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads an existing conversation or fails with ErrNotFound.
func (s *Service) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	return s.store.Get(ctx, sessionID)
}

// Save persists the conversation after a transition.
func (s *Service) Save(ctx context.Context, conv *Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	return s.store.Set(ctx, conv.SessionID, conv)
}

// Delete removes the conversation.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// StreamClaims are the jwt claims of a stream token: which request's answer
// channel the holder may read.
type StreamClaims struct {
	jwt.RegisteredClaims
	RequestID string `json:"rid"`
}

// CreateStreamToken signs a short-lived token granting read access to one
// request's event channels.
func (s *Service) CreateStreamToken(requestID string, lifetime time.Duration) (string, error) {
	claims := &StreamClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
		RequestID: requestID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.GetJWTSecret())
}

// ValidateStreamToken parses a stream token and returns the request id it
// grants access to.
func (s *Service) ValidateStreamToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &StreamClaims{}, func(token *jwt.Token) (interface{}, error) {
		return config.GetJWTSecret(), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid stream token: %w", err)
	}

	claims, ok := token.Claims.(*StreamClaims)
	if !ok || !token.Valid || claims.RequestID == "" {
		return "", errors.New("invalid stream token")
	}
	return claims.RequestID, nil
}
