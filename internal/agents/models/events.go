package models

import (
	"time"

	"github.com/paideia-labs/paideia/internal/domain/conversation"
)

// ProgressEvent reports orchestration progress for one request. Events are
// append-only and ordered by emission time within a request's channel.
type ProgressEvent struct {
	RequestID string             `json:"request_id"`
	Stage     conversation.Stage `json:"stage"`
	Message   string             `json:"message"`
	Progress  int                `json:"progress"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewProgressEvent clamps progress into [0, 100] and stamps the event.
func NewProgressEvent(requestID string, stage conversation.Stage, message string, progress int) ProgressEvent {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return ProgressEvent{
		RequestID: requestID,
		Stage:     stage,
		Message:   message,
		Progress:  progress,
		Timestamp: time.Now().UTC(),
	}
}

// AnswerEventType is the closed set of answer-channel event variants.
type AnswerEventType string

const (
	AnswerConnected AnswerEventType = "connected"
	AnswerChunk     AnswerEventType = "chunk"
	AnswerComplete  AnswerEventType = "complete"
	AnswerError     AnswerEventType = "error"
)

// IsTerminal reports whether t closes the answer channel. Exactly one
// terminal event is expected per request.
func (t AnswerEventType) IsTerminal() bool {
	return t == AnswerComplete || t == AnswerError
}

// AnswerEvent is one element of a request's answer stream. Chunk contents
// concatenated in emission order reconstruct the full answer.
type AnswerEvent struct {
	Type      AnswerEventType `json:"type"`
	Content   string          `json:"content,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewConnectedEvent marks a consumer attaching to the stream.
func NewConnectedEvent() AnswerEvent {
	return AnswerEvent{Type: AnswerConnected, Timestamp: time.Now().UTC()}
}

// NewChunkEvent carries one answer fragment.
func NewChunkEvent(content string) AnswerEvent {
	return AnswerEvent{Type: AnswerChunk, Content: content, Timestamp: time.Now().UTC()}
}

// NewCompleteEvent terminates the stream successfully.
func NewCompleteEvent() AnswerEvent {
	return AnswerEvent{Type: AnswerComplete, Timestamp: time.Now().UTC()}
}

// NewErrorEvent terminates the stream with a consumer-visible message.
func NewErrorEvent(message string) AnswerEvent {
	return AnswerEvent{Type: AnswerError, Message: message, Timestamp: time.Now().UTC()}
}
