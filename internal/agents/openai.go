package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/domain/conversation"
	openaiinfra "github.com/paideia-labs/paideia/internal/infrastructure/openai"
	"github.com/paideia-labs/paideia/internal/services/prompt"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Agent configuration section names. Each must exist in the agents config
// with the templates its agent renders.
const (
	AgentClassifier = "classifier"
	AgentClarifier  = "clarifier"
	AgentAnswerer   = "answerer"
	AgentEvaluator  = "evaluator"
	AgentSummarizer = "summarizer"
)

type openAIAgent struct {
	service *openaiinfra.Service
	prompts *prompt.Service
	name    string
}

// model resolves the agent's model from its settings, falling back to a
// shared default.
func (a *openAIAgent) model() string {
	if m, ok := a.prompts.GetSetting(a.name, "model", openai.GPT4Turbo).(string); ok && m != "" {
		return m
	}
	return openai.GPT4Turbo
}

func (a *openAIAgent) temperature() float32 {
	switch t := a.prompts.GetSetting(a.name, "temperature", nil).(type) {
	case float64:
		return float32(t)
	case int:
		return float32(t)
	default:
		return 0
	}
}

// complete renders the named template with vars and runs one non-streaming
// completion, returning the assistant text.
func (a *openAIAgent) complete(ctx context.Context, templateName string, vars map[string]string) (string, error) {
	p, err := a.prompts.BuildPrompt(a.name, templateName, vars)
	if err != nil {
		return "", err
	}

	resp, err := a.service.GetClient().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model(),
		Temperature: a.temperature(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("agent", a.name).Str("template", templateName).Msg("Completion failed")
		return "", fmt.Errorf("%s completion failed: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion returned no choices", a.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// requestVars is the caller-variable layer shared by all agents.
func requestVars(req *models.AgentRequest) map[string]string {
	return map[string]string{
		"question":   req.Question,
		"context":    req.Context,
		"request_id": req.RequestID,
	}
}

type classifierAgent struct {
	openAIAgent
}

// NewClassifier builds the classification agent.
func NewClassifier(service *openaiinfra.Service, prompts *prompt.Service) Classifier {
	return &classifierAgent{openAIAgent{service: service, prompts: prompts, name: AgentClassifier}}
}

// classificationWire is the JSON shape the classifier template instructs
// the model to emit.
type classificationWire struct {
	KnowledgeType  string `json:"knowledge_type"`
	Answerability  string `json:"answerability"`
	TotalQuestions int    `json:"total_questions"`
	Reason         string `json:"reason"`
}

func (a *classifierAgent) Classify(ctx context.Context, req *models.AgentRequest) (*conversation.ClassificationResult, error) {
	content, err := a.complete(ctx, "classify", requestVars(req))
	if err != nil {
		return nil, err
	}

	var wire classificationWire
	if err := json.Unmarshal([]byte(extractJSON(content)), &wire); err != nil {
		return nil, fmt.Errorf("classifier returned unparseable verdict: %w", err)
	}

	result := &conversation.ClassificationResult{
		KnowledgeType:         conversation.KnowledgeType(wire.KnowledgeType),
		Answerability:         conversation.Answerability(wire.Answerability),
		TotalClarifyQuestions: wire.TotalQuestions,
		Reason:                wire.Reason,
	}
	if !result.Answerability.IsValid() {
		return nil, fmt.Errorf("classifier returned unknown answerability %q", wire.Answerability)
	}
	return result, nil
}

type clarifierAgent struct {
	openAIAgent
}

// NewClarifier builds the clarification-question agent.
func NewClarifier(service *openaiinfra.Service, prompts *prompt.Service) Clarifier {
	return &clarifierAgent{openAIAgent{service: service, prompts: prompts, name: AgentClarifier}}
}

func (a *clarifierAgent) NextQuestion(ctx context.Context, req *models.AgentRequest, index, total int) (string, error) {
	vars := requestVars(req)
	vars["question_index"] = fmt.Sprintf("%d", index)
	vars["total_questions"] = fmt.Sprintf("%d", total)

	content, err := a.complete(ctx, "clarify_question", vars)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

type answererAgent struct {
	openAIAgent
}

// NewAnswerer builds the streaming answer agent.
func NewAnswerer(service *openaiinfra.Service, prompts *prompt.Service) Answerer {
	return &answererAgent{openAIAgent{service: service, prompts: prompts, name: AgentAnswerer}}
}

func (a *answererAgent) Stream(ctx context.Context, req *models.AgentRequest, onDelta func(content string) error) error {
	p, err := a.prompts.BuildPrompt(a.name, "answer", requestVars(req))
	if err != nil {
		return err
	}

	stream, err := a.service.GetClient().CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       a.model(),
		Temperature: a.temperature(),
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("Failed to open answer stream")
		return fmt.Errorf("answer stream failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("answer stream interrupted: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
}

type evaluatorAgent struct {
	openAIAgent
}

// NewEvaluator builds the question-grading agent.
func NewEvaluator(service *openaiinfra.Service, prompts *prompt.Service) Evaluator {
	return &evaluatorAgent{openAIAgent{service: service, prompts: prompts, name: AgentEvaluator}}
}

func (a *evaluatorAgent) Evaluate(ctx context.Context, req *models.AgentRequest) (*conversation.EvaluationResult, error) {
	content, err := a.complete(ctx, "evaluate", requestVars(req))
	if err != nil {
		return nil, err
	}

	var result conversation.EvaluationResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("evaluator returned unparseable grading: %w", err)
	}
	if !result.Grade.IsValid() {
		result.Grade = conversation.GradeNormal
	}
	return &result, nil
}

type summarizerAgent struct {
	openAIAgent
}

// NewSummarizer builds the context-summarization agent.
func NewSummarizer(service *openaiinfra.Service, prompts *prompt.Service) Summarizer {
	return &summarizerAgent{openAIAgent{service: service, prompts: prompts, name: AgentSummarizer}}
}

func (a *summarizerAgent) Summarize(ctx context.Context, req *models.AgentRequest) (string, error) {
	content, err := a.complete(ctx, "summarize", requestVars(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// extractJSON strips markdown fencing models sometimes wrap around JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}
