// Package models defines the typed records exchanged between the
// orchestrator and its agents, plus the events streamed to consumers.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyRequestID is returned when a request carries no request id.
	ErrEmptyRequestID = errors.New("agent request: empty request id")
	// ErrEmptyQuestion is returned when a request carries no question text.
	ErrEmptyQuestion = errors.New("agent request: empty question")
)

// AgentRequest is the immutable unit of work handed to an agent. Once
// dispatched it is never mutated; agents correlate their response back to it
// by RequestID.
type AgentRequest struct {
	RequestID string                 `json:"request_id"`
	Question  string                 `json:"question"`
	Context   string                 `json:"context,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewAgentRequest builds a validated request. An empty requestID is replaced
// with a generated one; an empty question is fatal to the call.
func NewAgentRequest(requestID, question, context string) (*AgentRequest, error) {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	req := &AgentRequest{
		RequestID: requestID,
		Question:  question,
		Context:   context,
		Timestamp: time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate rejects requests that must never be dispatched. Failures are
// reported to the caller before dispatch, never retried.
func (r *AgentRequest) Validate() error {
	if r.RequestID == "" {
		return ErrEmptyRequestID
	}
	if r.Question == "" {
		return fmt.Errorf("request %s: %w", r.RequestID, ErrEmptyQuestion)
	}
	return nil
}

// AgentResponse is produced exactly once per AgentRequest. Construction
// always succeeds; consumers must prefer Evaluation over the deprecated
// top-level Answer/Feedback fields when both are populated.
type AgentResponse struct {
	RequestID  string                 `json:"request_id"`
	Evaluation map[string]interface{} `json:"evaluation,omitempty"`

	// Deprecated: superseded by Evaluation when it is present.
	Answer string `json:"answer,omitempty"`
	// Deprecated: superseded by Evaluation when it is present.
	Feedback string `json:"feedback,omitempty"`

	Grade     string                 `json:"grade,omitempty"`
	Excellent bool                   `json:"excellent,omitempty"`
	Rejected  bool                   `json:"rejected,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AnswerText returns the authoritative answer text: the evaluation payload's
// "answer" entry when present, otherwise the top-level convenience field.
func (r *AgentResponse) AnswerText() string {
	if v, ok := r.Evaluation["answer"].(string); ok && v != "" {
		return v
	}
	return r.Answer
}

// FeedbackText returns the authoritative feedback text, with the same
// precedence as AnswerText.
func (r *AgentResponse) FeedbackText() string {
	if v, ok := r.Evaluation["feedback"].(string); ok && v != "" {
		return v
	}
	return r.Feedback
}
