package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/altay/deepresearch/pkg/tools"
)

// Message is one entry in a conversation transcript
type Message struct {
	Role       string       `json:"role"` // system, user, assistant, tool
	Content    string       `json:"content"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

// TokenUsage tracks token consumption for one turn
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns combined input and output tokens
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// TurnRequest carries everything needed for one model turn
type TurnRequest struct {
	Model        string
	Messages     []Message
	Tools        []tools.Definition
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Turn is one complete model turn: the assistant content, any complete
// tool-call requests, and usage. Tool calls are only present once
// syntactically complete; partial emissions never reach the dispatcher.
type Turn struct {
	Content   string       `json:"content"`
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
	Usage     TokenUsage   `json:"usage"`
}

// TurnEvent is one element of a streamed turn: either a token delta or the
// terminal element (a completed turn or an error). The channel closes after
// the terminal element.
type TurnEvent struct {
	Delta string
	Turn  *Turn
	Err   error
}

// Client streams a model's output for one conversational turn
type Client interface {
	// StreamTurn produces a finite sequence of TurnEvents: zero or more
	// deltas, then exactly one terminal event.
	StreamTurn(ctx context.Context, req TurnRequest) <-chan TurnEvent

	// Provider returns the backend name
	Provider() string
}

// RetryableModelError marks a transient backend failure. The turn may be
// re-issued against identical session state.
type RetryableModelError struct {
	Err error
}

func (e *RetryableModelError) Error() string {
	return fmt.Sprintf("retryable model error: %v", e.Err)
}

func (e *RetryableModelError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*RetryableModelError); ok {
		return true
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504", "overloaded"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}

// classifyErr wraps transient errors so callers can retry them
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if IsRetryable(err) {
		return &RetryableModelError{Err: err}
	}
	return err
}

// EstimateTokens provides a rough token count for budget projection.
// 1 token is approximately 4 characters.
func EstimateTokens(messages []Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
	}
	return (totalChars + 3) / 4
}

// Factory creates model clients from provider credentials
type Factory interface {
	NewClient(provider, apiKey string) (Client, error)
}

// DefaultFactory builds the built-in adapters
type DefaultFactory struct{}

// NewClient creates a client for the named provider
func (DefaultFactory) NewClient(provider, apiKey string) (Client, error) {
	switch provider {
	case "openai":
		return NewOpenAIClient(apiKey), nil
	case "anthropic":
		return NewAnthropicClient(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
