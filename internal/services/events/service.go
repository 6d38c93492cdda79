// Package events is the ephemeral streaming-delivery layer: per-request,
// TTL-bounded, append-only channels for progress updates and answer tokens.
// Producers never block on consumers, and a consumer polling within the
// retention window observes every event in emission order.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/domain/conversation"
	"github.com/paideia-labs/paideia/internal/infrastructure/redis"
	"github.com/rs/zerolog/log"
)

const (
	progressKeyPrefix = "progress_events:"
	answerKeyPrefix   = "answer_events:"
)

type Service struct {
	store       redis.Store
	progressTTL time.Duration
	answerTTL   time.Duration
}

// NewService builds the bus over a backing store. With the no-op store all
// publishing silently degrades to lost telemetry; the conversation itself
// is unaffected.
func NewService(store redis.Store, progressTTL, answerTTL time.Duration) *Service {
	return &Service{
		store:       store,
		progressTTL: progressTTL,
		answerTTL:   answerTTL,
	}
}

// PublishProgress appends a progress event to the request's progress channel
// and refreshes the channel's TTL. Best-effort: failures are logged, never
// surfaced.
func (s *Service) PublishProgress(ctx context.Context, requestID string, stage conversation.Stage, message string, progress int) {
	event := models.NewProgressEvent(requestID, stage, message, progress)
	s.append(ctx, progressKeyPrefix+requestID, event, s.progressTTL)
}

// PublishConnected marks a consumer attaching to the answer stream.
func (s *Service) PublishConnected(ctx context.Context, requestID string) {
	s.append(ctx, answerKeyPrefix+requestID, models.NewConnectedEvent(), s.answerTTL)
}

// PublishChunk appends one answer fragment to the request's answer channel.
func (s *Service) PublishChunk(ctx context.Context, requestID, content string) {
	s.append(ctx, answerKeyPrefix+requestID, models.NewChunkEvent(content), s.answerTTL)
}

// PublishComplete terminates the answer channel successfully. No further
// writes are expected afterwards; the bus does not enforce this.
func (s *Service) PublishComplete(ctx context.Context, requestID string) {
	s.append(ctx, answerKeyPrefix+requestID, models.NewCompleteEvent(), s.answerTTL)
}

// PublishError terminates the answer channel with a consumer-visible message.
func (s *Service) PublishError(ctx context.Context, requestID, message string) {
	s.append(ctx, answerKeyPrefix+requestID, models.NewErrorEvent(message), s.answerTTL)
}

// append serializes the event, pushes it, and refreshes the channel TTL.
// The TTL is refreshed on every write, so an actively written channel never
// expires mid-stream.
func (s *Service) append(ctx context.Context, key string, event interface{}, ttl time.Duration) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to serialize event")
		return
	}
	if err := s.store.Append(ctx, key, string(data)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Event publish degraded to no-op")
		return
	}
	if err := s.store.Expire(ctx, key, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to refresh channel TTL")
	}
}

// ProgressEvents replays every buffered progress event for the request, in
// emission order. An expired or never-written channel yields an empty slice.
func (s *Service) ProgressEvents(ctx context.Context, requestID string) ([]models.ProgressEvent, error) {
	raw, err := s.store.Range(ctx, progressKeyPrefix+requestID, 0, -1)
	if err != nil {
		return nil, err
	}
	events := make([]models.ProgressEvent, 0, len(raw))
	for _, item := range raw {
		var event models.ProgressEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("Skipping malformed progress event")
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// AnswerEvents replays buffered answer events starting at offset, in
// emission order. Consumers track their own offset to follow a live stream.
func (s *Service) AnswerEvents(ctx context.Context, requestID string, offset int64) ([]models.AnswerEvent, error) {
	raw, err := s.store.Range(ctx, answerKeyPrefix+requestID, offset, -1)
	if err != nil {
		return nil, err
	}
	events := make([]models.AnswerEvent, 0, len(raw))
	for _, item := range raw {
		var event models.AnswerEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("Skipping malformed answer event")
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
