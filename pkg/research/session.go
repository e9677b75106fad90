package research

import (
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/altay/deepresearch/pkg/model"
	"github.com/altay/deepresearch/pkg/tools"
)

// Session states
type State string

const (
	StateInit           State = "INIT"
	StateRunning        State = "RUNNING"
	StateToolPending    State = "TOOL_PENDING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
	StateBudgetExceeded State = "BUDGET_EXCEEDED"
)

// Terminal reports whether the state permits no further transitions
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateBudgetExceeded:
		return true
	}
	return false
}

var legalTransitions = map[State][]State{
	StateInit:        {StateRunning},
	StateRunning:     {StateToolPending, StateDone, StateFailed, StateBudgetExceeded},
	StateToolPending: {StateRunning, StateFailed, StateBudgetExceeded},
}

// Session holds the append-only transcript and state machine for one
// query-to-answer exchange. The loop goroutine owns it; all mutation goes
// through methods under the mutex. Messages are never removed or reordered.
type Session struct {
	ID string

	mu          sync.Mutex
	state       State
	messages    []model.Message
	toolCalls   int
	browseCalls int
	tokens      int
	createdAt   time.Time
	finalizedAt time.Time
}

// NewSession creates a session in INIT holding the user's query
func NewSession(content string) (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	return &Session{
		ID:        id,
		state:     StateInit,
		messages:  []model.Message{{Role: "user", Content: content}},
		createdAt: time.Now(),
	}, nil
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ToolCalls returns the cumulative dispatched tool-call count
func (s *Session) ToolCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCalls
}

// BrowseCalls returns the cumulative browse-tool call count
func (s *Session) BrowseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browseCalls
}

// Tokens returns the cumulative token estimate
func (s *Session) Tokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// CreatedAt returns when the session was created
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// FinalizedAt returns when the session reached a terminal state, or zero
func (s *Session) FinalizedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizedAt
}

// Transition moves the session to a new non-terminal state
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to State) error {
	for _, legal := range legalTransitions[s.state] {
		if legal == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal session transition %s -> %s", s.state, to)
}

// Finalize moves the session into a terminal state and locks it against
// further mutation. The caller releases the terminal stream event.
func (s *Session) Finalize(to State) error {
	if !to.Terminal() {
		return fmt.Errorf("finalize requires a terminal state, got %s", to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return fmt.Errorf("session %s already finalized as %s", s.ID, s.state)
	}
	if err := s.transitionLocked(to); err != nil {
		return err
	}
	s.finalizedAt = time.Now()
	return nil
}

// AppendAssistant commits a completed model turn: assistant content, its tool
// calls, and the turn's token usage. No partial content is committed before
// this point, which keeps turn retry idempotent.
func (s *Session) AppendAssistant(content string, calls []tools.Call, usage model.TokenUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return fmt.Errorf("session %s is finalized", s.ID)
	}

	for i := range calls {
		calls[i].MessageIndex = len(s.messages)
	}
	s.messages = append(s.messages, model.Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: calls,
	})
	s.tokens += usage.Total()
	return nil
}

// AppendToolResults commits a batch of results in request-issuance order and
// counts every dispatched call toward the budgets.
func (s *Session) AppendToolResults(results []tools.Result, browseTool string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return fmt.Errorf("session %s is finalized", s.ID)
	}

	for _, res := range results {
		s.messages = append(s.messages, model.Message{
			Role:       "tool",
			Content:    res.Content(),
			ToolCallID: res.CallID,
		})
		s.toolCalls++
		if res.Name == browseTool {
			s.browseCalls++
		}
	}
	return nil
}

// AppendUser commits an additional user-role instruction, such as the final
// summarization request after a budget veto.
func (s *Session) AppendUser(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return fmt.Errorf("session %s is finalized", s.ID)
	}
	s.messages = append(s.messages, model.Message{Role: "user", Content: content})
	return nil
}
