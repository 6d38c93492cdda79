package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/services/orchestrator"
	"github.com/paideia-labs/paideia/internal/services/session"
	"github.com/paideia-labs/paideia/internal/services/stage"
	"github.com/paideia-labs/paideia/pkg/httpext"
	"github.com/rs/zerolog/log"
)

// processTimeout bounds background turn processing, provider call included.
const processTimeout = 5 * time.Minute

const streamTokenLifetime = time.Hour

type askRequest struct {
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID   string `json:"session_id"`
	RequestID   string `json:"request_id"`
	StreamToken string `json:"stream_token"`
}

// HandleAskQuestion accepts a learner question, returns the request id and
// stream token immediately, and processes the turn in the background. The
// consumer follows the answer through the stream endpoint.
func (h *Handler) HandleAskQuestion(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpext.JsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	turn, err := h.svc.Orchestrator.Accept(r.Context(), body.SessionID, body.RequestID, body.Question)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	token, err := h.svc.Sessions.CreateStreamToken(turn.Request.RequestID, streamTokenLifetime)
	if err != nil {
		httpext.JsonError(w, "failed to issue stream token", http.StatusInternalServerError)
		return
	}

	go h.processAsync(turn, h.svc.Orchestrator.Process)

	httpext.JsonResponse(w, askResponse{
		SessionID:   turn.Conversation.SessionID,
		RequestID:   turn.Request.RequestID,
		StreamToken: token,
	}, http.StatusAccepted)
}

type replyRequest struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// HandleClarificationReply folds a learner's clarification reply into the
// conversation and continues the loop in the background.
func (h *Handler) HandleClarificationReply(w http.ResponseWriter, r *http.Request) {
	var body replyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpext.JsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Reply == "" {
		httpext.JsonError(w, "reply is required", http.StatusBadRequest)
		return
	}

	turn, err := h.svc.Orchestrator.AcceptReply(r.Context(), body.SessionID, body.Reply)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	go h.processAsync(turn, h.svc.Orchestrator.ProcessReply)

	httpext.JsonResponse(w, askResponse{
		SessionID: turn.Conversation.SessionID,
		RequestID: turn.Request.RequestID,
	}, http.StatusAccepted)
}

func (h *Handler) processAsync(turn *orchestrator.Turn, process func(context.Context, *orchestrator.Turn) error) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if err := process(ctx, turn); err != nil {
		log.Error().Err(err).
			Str("request_id", turn.Request.RequestID).
			Msg("Turn processing failed")
	}
}

func writeOrchestratorError(w http.ResponseWriter, err error) {
	var invalid *stage.InvalidTransitionError
	switch {
	case errors.Is(err, models.ErrEmptyQuestion), errors.Is(err, models.ErrEmptyRequestID):
		httpext.JsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, session.ErrNotFound):
		httpext.JsonError(w, "conversation not found", http.StatusNotFound)
	case errors.As(err, &invalid):
		httpext.JsonError(w, invalid.Error(), http.StatusConflict)
	default:
		httpext.JsonError(w, "internal error", http.StatusInternalServerError)
	}
}
