package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewAgentRequest(t *testing.T) {
	t.Run("generates a request id when none is supplied", func(t *testing.T) {
		req, err := NewAgentRequest("", "what is a derivative?", "")
		if err != nil {
			t.Fatalf("NewAgentRequest returned error: %v", err)
		}
		if req.RequestID == "" {
			t.Error("Expected a generated request id")
		}
		if req.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}
	})

	t.Run("keeps a caller-supplied request id", func(t *testing.T) {
		req, err := NewAgentRequest("r1", "question", "")
		if err != nil {
			t.Fatalf("NewAgentRequest returned error: %v", err)
		}
		if req.RequestID != "r1" {
			t.Errorf("Got request id %s, want r1", req.RequestID)
		}
	})

	t.Run("rejects an empty question", func(t *testing.T) {
		_, err := NewAgentRequest("r1", "", "")
		if !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Got %v, want ErrEmptyQuestion", err)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects an empty request id", func(t *testing.T) {
		req := &AgentRequest{Question: "q"}
		if err := req.Validate(); !errors.Is(err, ErrEmptyRequestID) {
			t.Errorf("Got %v, want ErrEmptyRequestID", err)
		}
	})

	t.Run("rejects an empty question", func(t *testing.T) {
		req := &AgentRequest{RequestID: "r1"}
		if err := req.Validate(); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Got %v, want ErrEmptyQuestion", err)
		}
	})
}

func TestAgentResponsePrecedence(t *testing.T) {
	t.Run("evaluation payload is authoritative", func(t *testing.T) {
		resp := &AgentResponse{
			RequestID:  "r1",
			Answer:     "stale",
			Feedback:   "stale",
			Evaluation: map[string]interface{}{"answer": "fresh", "feedback": "also fresh"},
		}
		if got := resp.AnswerText(); got != "fresh" {
			t.Errorf("AnswerText: got %q, want fresh", got)
		}
		if got := resp.FeedbackText(); got != "also fresh" {
			t.Errorf("FeedbackText: got %q, want also fresh", got)
		}
	})

	t.Run("convenience fields fill in when evaluation is absent", func(t *testing.T) {
		resp := &AgentResponse{RequestID: "r1", Answer: "only", Feedback: "one"}
		if got := resp.AnswerText(); got != "only" {
			t.Errorf("AnswerText: got %q, want only", got)
		}
		if got := resp.FeedbackText(); got != "one" {
			t.Errorf("FeedbackText: got %q, want one", got)
		}
	})
}

func TestAnswerEventWire(t *testing.T) {
	t.Run("chunk", func(t *testing.T) {
		data, err := json.Marshal(NewChunkEvent("fragment"))
		if err != nil {
			t.Fatalf("Marshal returned error: %v", err)
		}
		var wire map[string]interface{}
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("Unmarshal returned error: %v", err)
		}
		if wire["type"] != "chunk" || wire["content"] != "fragment" {
			t.Errorf("Got wire %v", wire)
		}
		if _, ok := wire["message"]; ok {
			t.Error("Chunk must not carry a message field")
		}
	})

	t.Run("error carries a message", func(t *testing.T) {
		data, _ := json.Marshal(NewErrorEvent("boom"))
		var wire map[string]interface{}
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("Unmarshal returned error: %v", err)
		}
		if wire["type"] != "error" || wire["message"] != "boom" {
			t.Errorf("Got wire %v", wire)
		}
	})

	t.Run("exactly complete and error are terminal", func(t *testing.T) {
		if !AnswerComplete.IsTerminal() || !AnswerError.IsTerminal() {
			t.Error("complete and error must be terminal")
		}
		if AnswerChunk.IsTerminal() || AnswerConnected.IsTerminal() {
			t.Error("chunk and connected must not be terminal")
		}
	})
}
