package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altay/deepresearch/pkg/tools"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection reset by peer"), true},
		{errors.New("request timeout"), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("500 Internal Server Error"), true},
		{errors.New("502 Bad Gateway"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("overloaded_error"), true},
		{&RetryableModelError{Err: errors.New("wrapped")}, true},
		{errors.New("invalid api key"), false},
		{errors.New("model not found"), false},
		{errors.New("context length exceeded"), false},
	}

	for _, tc := range cases {
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		assert.Equal(t, tc.want, IsRetryable(tc.err), name)
	}
}

func TestClassifyErrWrapsTransient(t *testing.T) {
	transient := errors.New("503 Service Unavailable")
	classified := classifyErr(transient)

	var retryable *RetryableModelError
	require.ErrorAs(t, classified, &retryable)
	assert.ErrorIs(t, classified, transient)

	fatal := errors.New("invalid api key")
	assert.Equal(t, fatal, classifyErr(fatal))
	assert.NoError(t, classifyErr(nil))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(nil))

	messages := []Message{
		{Role: "user", Content: "12345678"},  // 2 tokens
		{Role: "assistant", Content: "1234"}, // 1 token
	}
	assert.Equal(t, 3, EstimateTokens(messages))

	// Rounds up on partial tokens.
	assert.Equal(t, 1, EstimateTokens([]Message{{Content: "ab"}}))
}

func TestDefaultFactory(t *testing.T) {
	factory := DefaultFactory{}

	openaiClient, err := factory.NewClient("openai", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "openai", openaiClient.Provider())

	anthropicClient, err := factory.NewClient("anthropic", "sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", anthropicClient.Provider())

	_, err = factory.NewClient("cohere", "key")
	assert.Error(t, err)
}

func TestConvertAnthropicMessagesCoalescesToolResults(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "compare rds and cloud sql pricing"},
		{Role: "assistant", Content: "Searching.", ToolCalls: []tools.Call{
			{ID: "c1", Name: "google_search", Arguments: map[string]interface{}{"query": "rds pricing"}},
			{ID: "c2", Name: "google_search", Arguments: map[string]interface{}{"query": "cloud sql pricing"}},
		}},
		{Role: "tool", ToolCallID: "c1", Content: "result one"},
		{Role: "tool", ToolCallID: "c2", Content: "result two"},
		{Role: "assistant", Content: "Here is the comparison."},
	}

	converted := convertAnthropicMessages(messages)
	// user, assistant, one coalesced tool-result user message, assistant.
	require.Len(t, converted, 4)
	assert.Equal(t, "user", string(converted[0].Role))
	assert.Equal(t, "assistant", string(converted[1].Role))
	assert.Equal(t, "user", string(converted[2].Role))
	assert.Len(t, converted[2].Content, 2)
	assert.Equal(t, "assistant", string(converted[3].Role))
}
