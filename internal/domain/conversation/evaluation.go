package conversation

// QuestionGrade tags the overall quality of a learner question.
type QuestionGrade string

const (
	GradeNormal    QuestionGrade = "normal"
	GradeExcellent QuestionGrade = "excellent"
	GradeRejected  QuestionGrade = "rejected"
)

// IsValid reports whether g is a recognized grade.
func (g QuestionGrade) IsValid() bool {
	switch g {
	case GradeNormal, GradeExcellent, GradeRejected:
		return true
	default:
		return false
	}
}

func (g QuestionGrade) String() string {
	return string(g)
}

// EvaluationResult is the grading agent's scoring of a question. Immutable
// after creation; the orchestrator reads it to decide transitions and hands
// it to persistence untouched.
type EvaluationResult struct {
	SubScores      []float64          `json:"sub_scores"`
	CategoryScores map[string]float64 `json:"category_scores"`
	TotalScore     float64            `json:"total_score"`
	Grade          QuestionGrade      `json:"grade"`
	Excellent      bool               `json:"excellent"`
	Rejected       bool               `json:"rejected"`
	WeakAreas      []string           `json:"weak_areas,omitempty"`
	Feedback       string             `json:"feedback,omitempty"`
}
