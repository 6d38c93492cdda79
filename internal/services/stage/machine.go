// Package stage implements the conversation-level finite automaton. The
// machine performs no I/O and holds no agent knowledge: it consumes
// classification and clarification outcomes as triggers and emits the next
// stage plus the action the orchestrator must take.
package stage

import (
	"fmt"

	"github.com/paideia-labs/paideia/internal/domain/conversation"
)

// Trigger is an orchestration outcome that may advance the conversation.
type Trigger string

const (
	// TriggerQuestionAccepted fires when a question is accepted for
	// classification.
	TriggerQuestionAccepted Trigger = "question_accepted"
	// TriggerNeedsClarify fires when classification asks for clarification.
	TriggerNeedsClarify Trigger = "needs_clarify"
	// TriggerAnswerable fires when classification allows a direct answer.
	TriggerAnswerable Trigger = "answerable"
	// TriggerUnanswerable fires when classification refuses the question.
	TriggerUnanswerable Trigger = "unanswerable"
	// TriggerClarifyContinue fires when a clarification reply did not
	// resolve answerability and budget remains.
	TriggerClarifyContinue Trigger = "clarify_continue"
	// TriggerClarifyResolved fires when a clarification reply resolved
	// answerability.
	TriggerClarifyResolved Trigger = "clarify_resolved"
	// TriggerClarifyExhausted fires when the clarification budget ran out.
	TriggerClarifyExhausted Trigger = "clarify_exhausted"
	// TriggerAnswerFinished fires when the answer stream's terminal event
	// is observed.
	TriggerAnswerFinished Trigger = "answer_finished"
)

// Action tells the orchestrator what to do after a transition.
type Action string

const (
	ActionDispatchClassification  Action = "dispatch_classification"
	ActionDispatchClarifyQuestion Action = "dispatch_clarify_question"
	ActionDispatchAnswer          Action = "dispatch_answer"
	ActionFinalize                Action = "finalize"
)

// InvalidTransitionError reports an illegal (stage, trigger) pair. It is
// non-retryable: the same trigger from the same stage fails identically, so
// the caller must surface it, never absorb it.
type InvalidTransitionError struct {
	Stage   conversation.Stage
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: trigger %q is not legal from stage %q", e.Trigger, e.Stage)
}

type transition struct {
	next   conversation.Stage
	action Action
}

var transitions = map[conversation.Stage]map[Trigger]transition{
	conversation.StageInitialQuestion: {
		TriggerQuestionAccepted: {conversation.StageProcessingQuestion, ActionDispatchClassification},
	},
	conversation.StageProcessingQuestion: {
		TriggerNeedsClarify: {conversation.StageClarification, ActionDispatchClarifyQuestion},
		TriggerAnswerable:   {conversation.StageGeneratingAnswer, ActionDispatchAnswer},
		TriggerUnanswerable: {conversation.StageReadyForNewQuestion, ActionFinalize},
	},
	conversation.StageClarification: {
		TriggerClarifyContinue:  {conversation.StageClarification, ActionDispatchClarifyQuestion},
		TriggerClarifyResolved:  {conversation.StageGeneratingAnswer, ActionDispatchAnswer},
		TriggerClarifyExhausted: {conversation.StageReadyForNewQuestion, ActionFinalize},
	},
	conversation.StageGeneratingAnswer: {
		TriggerAnswerFinished: {conversation.StageReadyForNewQuestion, ActionFinalize},
	},
	// The ready stage loops back to accept the next question of the session.
	conversation.StageReadyForNewQuestion: {
		TriggerQuestionAccepted: {conversation.StageProcessingQuestion, ActionDispatchClassification},
	},
}

// Machine evaluates stage transitions. It is stateless and safe for
// concurrent use; per-conversation state lives in the session store.
type Machine struct{}

func NewMachine() *Machine {
	return &Machine{}
}

// Advance returns the next stage and the orchestrator action for a legal
// (current, trigger) pair. For an illegal pair it returns the current stage
// unchanged and an *InvalidTransitionError.
func (m *Machine) Advance(current conversation.Stage, trigger Trigger) (conversation.Stage, Action, error) {
	byTrigger, ok := transitions[current]
	if !ok {
		return current, "", &InvalidTransitionError{Stage: current, Trigger: trigger}
	}
	t, ok := byTrigger[trigger]
	if !ok {
		return current, "", &InvalidTransitionError{Stage: current, Trigger: trigger}
	}
	return t.next, t.action, nil
}
