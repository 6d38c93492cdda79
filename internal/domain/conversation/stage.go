// Package conversation holds the domain model for a learner conversation:
// the stage a session is in, how a question was classified, and how it was
// graded. Types here carry no behavior beyond validity checks.
package conversation

// Stage is the conversation-level phase gating which agent may act next.
// Stages are identified by stable strings; the set is closed.
type Stage string

const (
	StageInitialQuestion     Stage = "initial_question"
	StageProcessingQuestion  Stage = "processing_question"
	StageClarification       Stage = "clarification"
	StageGeneratingAnswer    Stage = "generating_answer"
	StageReadyForNewQuestion Stage = "ready_for_new_question"
)

// IsValid reports whether s is one of the canonical stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageInitialQuestion, StageProcessingQuestion, StageClarification,
		StageGeneratingAnswer, StageReadyForNewQuestion:
		return true
	default:
		return false
	}
}

// AcceptsQuestion reports whether a new learner question may enter the
// conversation in this stage.
func (s Stage) AcceptsQuestion() bool {
	return s == StageInitialQuestion || s == StageReadyForNewQuestion
}

func (s Stage) String() string {
	return string(s)
}

// AllStages returns every canonical stage.
func AllStages() []Stage {
	return []Stage{
		StageInitialQuestion,
		StageProcessingQuestion,
		StageClarification,
		StageGeneratingAnswer,
		StageReadyForNewQuestion,
	}
}
