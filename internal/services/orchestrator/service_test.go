package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/domain/conversation"
	redisinfra "github.com/paideia-labs/paideia/internal/infrastructure/redis"
	"github.com/paideia-labs/paideia/internal/services/events"
	"github.com/paideia-labs/paideia/internal/services/session"
	"github.com/paideia-labs/paideia/internal/services/stage"
)

type fakeClassifier struct {
	verdicts []*conversation.ClassificationResult
	calls    int
	err      error
}

func (f *fakeClassifier) Classify(ctx context.Context, req *models.AgentRequest) (*conversation.ClassificationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	verdict := f.verdicts[f.calls]
	if f.calls < len(f.verdicts)-1 {
		f.calls++
	}
	return verdict, nil
}

type fakeClarifier struct {
	question string
}

func (f *fakeClarifier) NextQuestion(ctx context.Context, req *models.AgentRequest, index, total int) (string, error) {
	return f.question, nil
}

type fakeAnswerer struct {
	chunks []string
	err    error
}

func (f *fakeAnswerer) Stream(ctx context.Context, req *models.AgentRequest, onDelta func(string) error) error {
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := onDelta(chunk); err != nil {
			return err
		}
	}
	return nil
}

type fakeEvaluator struct {
	result *conversation.EvaluationResult
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req *models.AgentRequest) (*conversation.EvaluationResult, error) {
	if f.result == nil {
		return &conversation.EvaluationResult{Grade: conversation.GradeNormal}, nil
	}
	return f.result, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, req *models.AgentRequest) (string, error) {
	return "summary of the clarification exchange", nil
}

type fixture struct {
	orch     *Service
	bus      *events.Service
	sessions *session.Service
	store    *redisinfra.Memory
}

func newFixture(classifier *fakeClassifier, answerer *fakeAnswerer, evaluator *fakeEvaluator) *fixture {
	store := redisinfra.NewMemory()
	bus := events.NewService(store, time.Minute, time.Hour)
	sessions := session.NewService(store, time.Hour)
	orch := NewService(
		stage.NewMachine(),
		bus,
		sessions,
		classifier,
		&fakeClarifier{question: "어떤 부분이 궁금한가요?"},
		answerer,
		evaluator,
		fakeSummarizer{},
	)
	return &fixture{orch: orch, bus: bus, sessions: sessions, store: store}
}

func (f *fixture) stageOf(t *testing.T, sessionID string) conversation.Stage {
	t.Helper()
	conv, err := f.sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get conversation: %v", err)
	}
	return conv.Stage
}

func TestClarificationScenario(t *testing.T) {
	// The full turn: a vague question enters clarification with a budget
	// of one, a single reply resolves it, and the answer streams out.
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.NeedsClarify, TotalClarifyQuestions: 1},
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.Answerable},
	}}
	answerer := &fakeAnswerer{chunks: []string{"이차함수는 ", "y=ax²+bx+c 형태의 ", "함수입니다."}}
	f := newFixture(classifier, answerer, &fakeEvaluator{})
	ctx := context.Background()

	turn, err := f.orch.Accept(ctx, "s1", "r1", "이차함수 알려줘")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if turn.Request.RequestID != "r1" {
		t.Fatalf("Got request id %s, want r1", turn.Request.RequestID)
	}
	if got := f.stageOf(t, "s1"); got != conversation.StageProcessingQuestion {
		t.Fatalf("After accept: got stage %s, want %s", got, conversation.StageProcessingQuestion)
	}

	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := f.stageOf(t, "s1"); got != conversation.StageClarification {
		t.Fatalf("After classification: got stage %s, want %s", got, conversation.StageClarification)
	}

	reply, err := f.orch.AcceptReply(ctx, "s1", "포물선 그래프가 궁금해요")
	if err != nil {
		t.Fatalf("AcceptReply returned error: %v", err)
	}
	if reply.Request.RequestID != "r1" {
		t.Errorf("Reply turn switched request id to %s", reply.Request.RequestID)
	}

	if err := f.orch.ProcessReply(ctx, reply); err != nil {
		t.Fatalf("ProcessReply returned error: %v", err)
	}
	if got := f.stageOf(t, "s1"); got != conversation.StageReadyForNewQuestion {
		t.Fatalf("After answering: got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}

	answerEvents, err := f.bus.AnswerEvents(ctx, "r1", 0)
	if err != nil {
		t.Fatalf("AnswerEvents returned error: %v", err)
	}
	if len(answerEvents) != 5 {
		t.Fatalf("Got %d answer events, want connected, 3 chunks, and a terminal", len(answerEvents))
	}
	if answerEvents[0].Type != models.AnswerConnected {
		t.Errorf("First event: got %s, want connected", answerEvents[0].Type)
	}

	var answer strings.Builder
	for _, event := range answerEvents[1:4] {
		if event.Type != models.AnswerChunk {
			t.Fatalf("Got event type %s, want chunk", event.Type)
		}
		answer.WriteString(event.Content)
	}
	if answer.String() != "이차함수는 y=ax²+bx+c 형태의 함수입니다." {
		t.Errorf("Reconstructed answer: got %q", answer.String())
	}
	if answerEvents[4].Type != models.AnswerComplete {
		t.Errorf("Terminal event: got %s, want complete", answerEvents[4].Type)
	}
}

func TestDirectlyAnswerableQuestion(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeProcedure, Answerability: conversation.Answerable},
	}}
	f := newFixture(classifier, &fakeAnswerer{chunks: []string{"answer"}}, &fakeEvaluator{})
	ctx := context.Background()

	turn, err := f.orch.Accept(ctx, "s1", "", "how do I complete the square?")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := f.stageOf(t, turn.Conversation.SessionID); got != conversation.StageReadyForNewQuestion {
		t.Errorf("Got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}

	answerEvents, _ := f.bus.AnswerEvents(ctx, turn.Request.RequestID, 0)
	if len(answerEvents) != 3 || answerEvents[2].Type != models.AnswerComplete {
		t.Errorf("Got events %v, want connected, one chunk, and complete", answerEvents)
	}
}

func TestUnanswerableQuestion(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.Unanswerable, Reason: "out of scope"},
	}}
	f := newFixture(classifier, &fakeAnswerer{}, &fakeEvaluator{})
	ctx := context.Background()

	turn, err := f.orch.Accept(ctx, "s1", "r1", "tell me tomorrow's lottery numbers")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := f.stageOf(t, "s1"); got != conversation.StageReadyForNewQuestion {
		t.Errorf("Got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}

	// Terminal response is an explanation, not an answer stream.
	answerEvents, _ := f.bus.AnswerEvents(ctx, "r1", 0)
	if len(answerEvents) != 2 || answerEvents[1].Type != models.AnswerError {
		t.Fatalf("Got events %v, want connected then an error terminal", answerEvents)
	}
	if answerEvents[1].Message != "out of scope" {
		t.Errorf("Got message %q, want the classifier's reason", answerEvents[1].Message)
	}
}

func TestRejectedQuestionShortCircuits(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.Answerable},
	}}
	evaluator := &fakeEvaluator{result: &conversation.EvaluationResult{Grade: conversation.GradeRejected, Rejected: true}}
	f := newFixture(classifier, &fakeAnswerer{chunks: []string{"never sent"}}, evaluator)
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "do my homework for me")
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	answerEvents, _ := f.bus.AnswerEvents(ctx, "r1", 0)
	if len(answerEvents) != 2 || answerEvents[1].Type != models.AnswerError {
		t.Errorf("Got events %v, want connected then an error terminal", answerEvents)
	}
}

func TestExhaustedClarificationBudget(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.NeedsClarify, TotalClarifyQuestions: 1},
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.NeedsClarify},
	}}
	f := newFixture(classifier, &fakeAnswerer{}, &fakeEvaluator{})
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "vague question")
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	// First unresolved reply: budget allows one more question.
	reply, err := f.orch.AcceptReply(ctx, "s1", "still vague")
	if err != nil {
		t.Fatalf("AcceptReply returned error: %v", err)
	}
	if err := f.orch.ProcessReply(ctx, reply); err != nil {
		t.Fatalf("ProcessReply returned error: %v", err)
	}
	if got := f.stageOf(t, "s1"); got != conversation.StageClarification {
		t.Fatalf("Got stage %s, want %s", got, conversation.StageClarification)
	}

	// Second unresolved reply: budget exhausted, refusal answer streamed.
	reply, err = f.orch.AcceptReply(ctx, "s1", "even more vague")
	if err != nil {
		t.Fatalf("AcceptReply returned error: %v", err)
	}
	if err := f.orch.ProcessReply(ctx, reply); err != nil {
		t.Fatalf("ProcessReply returned error: %v", err)
	}
	if got := f.stageOf(t, "s1"); got != conversation.StageReadyForNewQuestion {
		t.Errorf("Got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}

	answerEvents, _ := f.bus.AnswerEvents(ctx, "r1", 0)
	last := answerEvents[len(answerEvents)-1]
	if last.Type != models.AnswerComplete {
		t.Errorf("Terminal event: got %s, want complete", last.Type)
	}
	if answerEvents[len(answerEvents)-2].Content == "" {
		t.Error("Expected a refusal chunk before the terminal event")
	}
}

func TestZeroBudgetIsImmediatelyExhausted(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.NeedsClarify, TotalClarifyQuestions: 0},
	}}
	f := newFixture(classifier, &fakeAnswerer{}, &fakeEvaluator{})
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "vague question")
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if got := f.stageOf(t, "s1"); got != conversation.StageReadyForNewQuestion {
		t.Errorf("Got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}
}

func TestStreamFailurePublishesErrorTerminal(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.Answerable},
	}}
	answerer := &fakeAnswerer{err: errors.New("provider timeout")}
	f := newFixture(classifier, answerer, &fakeEvaluator{})
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "question")
	if err := f.orch.Process(ctx, turn); err == nil {
		t.Fatal("Process succeeded, want stream error")
	}

	// The channel must never be left silently unterminated.
	answerEvents, _ := f.bus.AnswerEvents(ctx, "r1", 0)
	if len(answerEvents) != 2 || answerEvents[1].Type != models.AnswerError {
		t.Fatalf("Got events %v, want connected then an error terminal", answerEvents)
	}

	// Failure still finalizes the turn.
	if got := f.stageOf(t, "s1"); got != conversation.StageReadyForNewQuestion {
		t.Errorf("Got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}
}

func TestSecondQuestionWhileClarifying(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.NeedsClarify, TotalClarifyQuestions: 2},
	}}
	f := newFixture(classifier, &fakeAnswerer{}, &fakeEvaluator{})
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "vague question")
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	// A second question while clarifying is an illegal transition: it must
	// surface, and the new request's stream must get a terminal error.
	_, err := f.orch.Accept(ctx, "s1", "r2", "another question")
	var invalid *stage.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Got %v, want *InvalidTransitionError", err)
	}

	answerEvents, _ := f.bus.AnswerEvents(ctx, "r2", 0)
	if len(answerEvents) != 1 || answerEvents[0].Type != models.AnswerError {
		t.Errorf("Got events %v, want a single error terminal", answerEvents)
	}

	// The original conversation is untouched.
	if got := f.stageOf(t, "s1"); got != conversation.StageClarification {
		t.Errorf("Got stage %s, want %s", got, conversation.StageClarification)
	}
}

func TestReplyOutsideClarification(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []*conversation.ClassificationResult{
		{KnowledgeType: conversation.KnowledgeConcept, Answerability: conversation.Answerable},
	}}
	f := newFixture(classifier, &fakeAnswerer{chunks: []string{"done"}}, &fakeEvaluator{})
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "question")
	if err := f.orch.Process(ctx, turn); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	_, err := f.orch.AcceptReply(ctx, "s1", "a reply nobody asked for")
	var invalid *stage.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Errorf("Got %v, want *InvalidTransitionError", err)
	}
}

func TestClassificationFailure(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("model unavailable")}
	f := newFixture(classifier, &fakeAnswerer{}, &fakeEvaluator{})
	ctx := context.Background()

	turn, _ := f.orch.Accept(ctx, "s1", "r1", "question")
	if err := f.orch.Process(ctx, turn); err == nil {
		t.Fatal("Process succeeded, want error")
	}

	answerEvents, _ := f.bus.AnswerEvents(ctx, "r1", 0)
	if len(answerEvents) != 2 || answerEvents[1].Type != models.AnswerError {
		t.Errorf("Got events %v, want connected then an error terminal", answerEvents)
	}
	if got := f.stageOf(t, "s1"); got != conversation.StageReadyForNewQuestion {
		t.Errorf("Got stage %s, want %s", got, conversation.StageReadyForNewQuestion)
	}
}
