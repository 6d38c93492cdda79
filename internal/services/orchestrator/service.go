// Package orchestrator drives one learner turn through the stage machine,
// the clarification controller, the event bus, and the agents. All stage
// mutation happens here, through machine transitions; every failure path
// that would otherwise strand a stream consumer publishes a terminal error
// event instead.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/paideia-labs/paideia/internal/agents"
	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/domain/conversation"
	"github.com/paideia-labs/paideia/internal/services/clarify"
	"github.com/paideia-labs/paideia/internal/services/events"
	"github.com/paideia-labs/paideia/internal/services/session"
	"github.com/paideia-labs/paideia/internal/services/stage"
	"github.com/rs/zerolog/log"
)

const refusalMessage = "I couldn't gather enough detail to answer this question. Please ask again with more specifics."

type Service struct {
	machine    *stage.Machine
	bus        *events.Service
	sessions   *session.Service
	classifier agents.Classifier
	clarifier  agents.Clarifier
	answerer   agents.Answerer
	evaluator  agents.Evaluator
	summarizer agents.Summarizer
}

func NewService(
	machine *stage.Machine,
	bus *events.Service,
	sessions *session.Service,
	classifier agents.Classifier,
	clarifier agents.Clarifier,
	answerer agents.Answerer,
	evaluator agents.Evaluator,
	summarizer agents.Summarizer,
) *Service {
	return &Service{
		machine:    machine,
		bus:        bus,
		sessions:   sessions,
		classifier: classifier,
		clarifier:  clarifier,
		answerer:   answerer,
		evaluator:  evaluator,
		summarizer: summarizer,
	}
}

// Turn is one accepted unit of learner input, ready for processing.
type Turn struct {
	Conversation *session.Conversation
	Request      *models.AgentRequest
}

// Accept validates a new question and advances the conversation into
// processing. It returns before any agent work happens, so callers can hand
// the request id to the consumer and run Process separately. An empty
// requestID gets a generated one; an illegal stage surfaces as an
// *stage.InvalidTransitionError after a terminal error event is published.
func (s *Service) Accept(ctx context.Context, sessionID, requestID, question string) (*Turn, error) {
	conv, err := s.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	req, err := models.NewAgentRequest(requestID, question, "")
	if err != nil {
		return nil, err
	}
	req.SessionID = conv.SessionID

	next, _, err := s.machine.Advance(conv.Stage, stage.TriggerQuestionAccepted)
	if err != nil {
		s.bus.PublishError(ctx, req.RequestID, "conversation cannot accept a question right now")
		return nil, err
	}

	conv.Stage = next
	conv.RequestID = req.RequestID
	conv.Question = question
	conv.ClarifyIndex = 0
	conv.ClarifyTotal = 0
	conv.Context = nil
	if err := s.sessions.Save(ctx, conv); err != nil {
		log.Warn().Err(err).Str("session_id", conv.SessionID).Msg("Failed to persist conversation - continuing")
	}

	// Seed the answer channel now, so it exists from acceptance onward and
	// a consumer reading it empty can only mean TTL expiry.
	s.bus.PublishConnected(ctx, req.RequestID)
	s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, "Question accepted", 5)
	return &Turn{Conversation: conv, Request: req}, nil
}

// Process classifies the accepted question and follows the resulting
// branch: clarification, answer generation, or a terminal explanation.
func (s *Service) Process(ctx context.Context, turn *Turn) error {
	conv, req := turn.Conversation, turn.Request

	s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, "Classifying question", 10)

	result, err := s.classifier.Classify(ctx, req)
	if err != nil {
		return s.abort(ctx, conv, req, stage.TriggerUnanswerable, "classification failed", err)
	}

	// Grading is advisory except for rejection, which short-circuits the
	// conversation like an unanswerable question.
	answerability := result.Answerability
	if eval, err := s.evaluator.Evaluate(ctx, req); err != nil {
		log.Warn().Err(err).Str("request_id", req.RequestID).Msg("Question grading failed - continuing ungraded")
	} else if eval.Rejected || eval.Grade == conversation.GradeRejected {
		answerability = conversation.Unanswerable
	}

	log.Info().
		Str("request_id", req.RequestID).
		Str("knowledge_type", result.KnowledgeType.String()).
		Str("answerability", answerability.String()).
		Msg("Question classified")

	switch answerability {
	case conversation.NeedsClarify:
		return s.enterClarification(ctx, conv, req, result.TotalClarifyQuestions)
	case conversation.Answerable:
		if err := s.transition(ctx, conv, req, stage.TriggerAnswerable); err != nil {
			return err
		}
		return s.streamAnswer(ctx, conv, req)
	default:
		if err := s.transition(ctx, conv, req, stage.TriggerUnanswerable); err != nil {
			return err
		}
		explanation := result.Reason
		if explanation == "" {
			explanation = "This question cannot be answered as asked."
		}
		// Terminal response is an explanation, not an answer stream.
		s.bus.PublishError(ctx, req.RequestID, explanation)
		s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, explanation, 100)
		return nil
	}
}

// AcceptReply validates a clarification reply against the current stage and
// folds it into the conversation context. The returned turn reuses the
// question's request id, so the consumer keeps its existing stream.
func (s *Service) AcceptReply(ctx context.Context, sessionID, reply string) (*Turn, error) {
	conv, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	// Dry advance: a reply is only legal while clarifying.
	if _, _, err := s.machine.Advance(conv.Stage, stage.TriggerClarifyContinue); err != nil {
		return nil, err
	}

	conv.Context = append(conv.Context, fmt.Sprintf("learner: %s", reply))
	req, err := models.NewAgentRequest(conv.RequestID, conv.Question, conv.ContextText())
	if err != nil {
		return nil, err
	}
	req.SessionID = conv.SessionID

	if err := s.sessions.Save(ctx, conv); err != nil {
		log.Warn().Err(err).Str("session_id", conv.SessionID).Msg("Failed to persist conversation - continuing")
	}
	return &Turn{Conversation: conv, Request: req}, nil
}

// ProcessReply re-runs answerability over the accumulated context and
// follows the controller's verdict: ask the next question, generate the
// answer, or give up with a refusal.
func (s *Service) ProcessReply(ctx context.Context, turn *Turn) error {
	conv, req := turn.Conversation, turn.Request

	result, err := s.classifier.Classify(ctx, req)
	if err != nil {
		return s.abort(ctx, conv, req, stage.TriggerClarifyExhausted, "classification failed", err)
	}

	ctrl := clarify.Resume(conv.ClarifyIndex, conv.ClarifyTotal)
	switch ctrl.OnReply(result.Answerability) {
	case clarify.OutcomeResolved:
		if err := s.transition(ctx, conv, req, stage.TriggerClarifyResolved); err != nil {
			return err
		}
		s.summarizeContext(ctx, req)
		return s.streamAnswer(ctx, conv, req)

	case clarify.OutcomeContinue:
		if err := s.transition(ctx, conv, req, stage.TriggerClarifyContinue); err != nil {
			return err
		}
		return s.askClarification(ctx, conv, req, ctrl)

	default:
		if err := s.transition(ctx, conv, req, stage.TriggerClarifyExhausted); err != nil {
			return err
		}
		// Budget exhausted without resolution: a refusal answer, streamed
		// like any other so the consumer sees a complete terminal event.
		s.bus.PublishChunk(ctx, req.RequestID, refusalMessage)
		s.bus.PublishComplete(ctx, req.RequestID)
		s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, "Clarification budget exhausted", 100)
		return nil
	}
}

// enterClarification moves the conversation into the clarification loop and
// asks its first question. A non-positive budget is treated as immediately
// exhausted and the loop never starts.
func (s *Service) enterClarification(ctx context.Context, conv *session.Conversation, req *models.AgentRequest, total int) error {
	if err := s.transition(ctx, conv, req, stage.TriggerNeedsClarify); err != nil {
		return err
	}

	ctrl := clarify.NewController(total)
	if ctrl.Exhausted() {
		if err := s.transition(ctx, conv, req, stage.TriggerClarifyExhausted); err != nil {
			return err
		}
		s.bus.PublishChunk(ctx, req.RequestID, refusalMessage)
		s.bus.PublishComplete(ctx, req.RequestID)
		s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, "Clarification budget exhausted", 100)
		return nil
	}

	return s.askClarification(ctx, conv, req, ctrl)
}

// askClarification emits the controller's current question to the learner
// through the progress channel.
func (s *Service) askClarification(ctx context.Context, conv *session.Conversation, req *models.AgentRequest, ctrl *clarify.Controller) error {
	index, total := ctrl.Progress()

	question, err := s.clarifier.NextQuestion(ctx, req, index, total)
	if err != nil {
		return s.abort(ctx, conv, req, stage.TriggerClarifyExhausted, "clarification failed", err)
	}

	conv.ClarifyIndex = index
	conv.ClarifyTotal = total
	if err := s.sessions.Save(ctx, conv); err != nil {
		log.Warn().Err(err).Str("session_id", conv.SessionID).Msg("Failed to persist conversation - continuing")
	}

	progress := 20 + (50*index)/(total+1)
	s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, question, progress)
	return nil
}

// streamAnswer runs the answer agent, forwarding each token fragment to the
// answer channel, and closes the channel with exactly one terminal event.
// The conversation reaches the ready stage on both the success and failure
// paths.
func (s *Service) streamAnswer(ctx context.Context, conv *session.Conversation, req *models.AgentRequest) error {
	s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, "Generating answer", 60)

	streamErr := s.answerer.Stream(ctx, req, func(content string) error {
		s.bus.PublishChunk(ctx, req.RequestID, content)
		return nil
	})
	if streamErr != nil {
		// Provider timeouts included: the channel must never be left
		// silently unterminated.
		log.Error().Err(streamErr).Str("request_id", req.RequestID).Msg("Answer generation failed")
		s.bus.PublishError(ctx, req.RequestID, "answer generation failed")
	} else {
		s.bus.PublishComplete(ctx, req.RequestID)
	}

	if err := s.transition(ctx, conv, req, stage.TriggerAnswerFinished); err != nil {
		return err
	}
	s.bus.PublishProgress(ctx, req.RequestID, conv.Stage, "Answer complete", 100)
	return streamErr
}

// summarizeContext folds the clarification exchanges into a compact context
// block. Best-effort: on failure the raw context is kept.
func (s *Service) summarizeContext(ctx context.Context, req *models.AgentRequest) {
	summary, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("request_id", req.RequestID).Msg("Context summarization failed - using raw context")
		return
	}
	if summary != "" {
		req.Context = summary
	}
}

// transition advances the stage, persists it, and surfaces illegal
// transitions after terminating the consumer's stream. Transition errors
// are never absorbed: retrying the same trigger fails identically, so the
// caller must treat the conversation as stuck.
func (s *Service) transition(ctx context.Context, conv *session.Conversation, req *models.AgentRequest, trigger stage.Trigger) error {
	next, _, err := s.machine.Advance(conv.Stage, trigger)
	if err != nil {
		log.Error().Err(err).
			Str("request_id", req.RequestID).
			Str("stage", conv.Stage.String()).
			Msg("Illegal stage transition")
		s.bus.PublishError(ctx, req.RequestID, "conversation cannot progress")
		return err
	}

	conv.Stage = next
	if err := s.sessions.Save(ctx, conv); err != nil {
		log.Warn().Err(err).Str("session_id", conv.SessionID).Msg("Failed to persist conversation - continuing")
	}
	return nil
}

// abort finalizes a turn whose agent work failed: the consumer gets a
// terminal error event and the conversation returns to accepting questions
// instead of sticking mid-turn. The stage still moves through a legal
// finalizing trigger, never by direct assignment.
func (s *Service) abort(ctx context.Context, conv *session.Conversation, req *models.AgentRequest, trigger stage.Trigger, message string, cause error) error {
	log.Error().Err(cause).Str("request_id", req.RequestID).Msg(message)
	s.bus.PublishError(ctx, req.RequestID, message)

	next, _, err := s.machine.Advance(conv.Stage, trigger)
	if err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("Cannot finalize failed turn")
		return fmt.Errorf("%s: %w", message, cause)
	}

	conv.Stage = next
	conv.ClarifyIndex = 0
	conv.ClarifyTotal = 0
	if err := s.sessions.Save(ctx, conv); err != nil {
		log.Warn().Err(err).Str("session_id", conv.SessionID).Msg("Failed to persist conversation - continuing")
	}
	return fmt.Errorf("%s: %w", message, cause)
}
