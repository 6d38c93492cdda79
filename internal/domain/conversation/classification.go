package conversation

// KnowledgeType is the pedagogical category assigned to a learner question.
type KnowledgeType string

const (
	KnowledgeConcept        KnowledgeType = "K1" // concept explanation
	KnowledgeProcedure      KnowledgeType = "K2" // procedure / how-to
	KnowledgeProblemSolving KnowledgeType = "K3" // problem solving
	KnowledgeDeepDive       KnowledgeType = "K4" // deep dive
)

// IsValid reports whether k is a recognized knowledge type.
func (k KnowledgeType) IsValid() bool {
	switch k {
	case KnowledgeConcept, KnowledgeProcedure, KnowledgeProblemSolving, KnowledgeDeepDive:
		return true
	default:
		return false
	}
}

func (k KnowledgeType) String() string {
	return string(k)
}

// Answerability says whether a question can be answered as asked.
type Answerability string

const (
	Answerable   Answerability = "answerable"
	NeedsClarify Answerability = "needs_clarify"
	Unanswerable Answerability = "unanswerable"
)

// IsValid reports whether a is a recognized answerability outcome.
func (a Answerability) IsValid() bool {
	switch a {
	case Answerable, NeedsClarify, Unanswerable:
		return true
	default:
		return false
	}
}

func (a Answerability) String() string {
	return string(a)
}

// ClassificationResult is the classifier agent's verdict on a question.
// TotalClarifyQuestions is only meaningful when Answerability is
// NeedsClarify; it fixes the clarification budget for the whole loop.
type ClassificationResult struct {
	KnowledgeType         KnowledgeType `json:"knowledge_type"`
	Answerability         Answerability `json:"answerability"`
	TotalClarifyQuestions int           `json:"total_clarify_questions,omitempty"`
	Reason                string        `json:"reason,omitempty"`
}
