// Package agents holds the cooperating reasoning agents: classification,
// clarification, answer generation, grading, and summarization. Each agent
// builds its prompts through the template engine and calls the language
// model through the provider client; the orchestrator talks to them only
// through the interfaces below so it stays testable with fakes.
package agents

import (
	"context"

	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/domain/conversation"
)

// Classifier decides a question's knowledge type and answerability, and
// fixes the clarification budget when clarification is needed.
type Classifier interface {
	Classify(ctx context.Context, req *models.AgentRequest) (*conversation.ClassificationResult, error)
}

// Clarifier produces the next clarification question for the learner.
type Clarifier interface {
	NextQuestion(ctx context.Context, req *models.AgentRequest, index, total int) (string, error)
}

// Answerer streams the final answer. onDelta is called once per token
// fragment in emission order; a non-nil return aborts the stream.
type Answerer interface {
	Stream(ctx context.Context, req *models.AgentRequest, onDelta func(content string) error) error
}

// Evaluator grades the learner question.
type Evaluator interface {
	Evaluate(ctx context.Context, req *models.AgentRequest) (*conversation.EvaluationResult, error)
}

// Summarizer folds accumulated clarification context into a compact block
// for the answer prompt.
type Summarizer interface {
	Summarize(ctx context.Context, req *models.AgentRequest) (string, error)
}
