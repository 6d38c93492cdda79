// Package clarify implements the bounded sub-protocol nested inside the
// clarification stage. The budget (total questions) is fixed by the
// classifier when the loop starts and never changes mid-loop.
package clarify

import "github.com/paideia-labs/paideia/internal/domain/conversation"

// Outcome is the controller's verdict after one learner reply.
type Outcome string

const (
	// OutcomeContinue means the next clarification question should be asked.
	OutcomeContinue Outcome = "continue"
	// OutcomeResolved means answerability is resolved; exit to answering.
	OutcomeResolved Outcome = "resolved"
	// OutcomeExhausted means the budget ran out without resolution.
	OutcomeExhausted Outcome = "exhausted"
)

// Controller tracks (question index, total questions) for one conversation.
type Controller struct {
	index int
	total int
}

// NewController starts the loop at question 1 of total. A total of zero or
// less makes the loop immediately exhausted; no question is ever asked.
func NewController(total int) *Controller {
	return &Controller{index: 1, total: total}
}

// Resume rebuilds a controller from persisted loop state.
func Resume(index, total int) *Controller {
	if index < 1 {
		index = 1
	}
	return &Controller{index: index, total: total}
}

// Exhausted reports whether the loop can make no further progress.
func (c *Controller) Exhausted() bool {
	return c.total <= 0 || c.index > c.total
}

// OnReply consumes one learner reply together with its re-run answerability
// classification and returns the loop's next move. On continue the question
// index advances to the question being asked next.
func (c *Controller) OnReply(a conversation.Answerability) Outcome {
	if a == conversation.Answerable {
		return OutcomeResolved
	}
	if c.Exhausted() {
		return OutcomeExhausted
	}
	c.index++
	return OutcomeContinue
}

// Progress returns the current question index and the fixed total.
func (c *Controller) Progress() (index, total int) {
	return c.index, c.total
}
