package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altay/deepresearch/pkg/model"
	"github.com/altay/deepresearch/pkg/tools"
)

func TestSessionLifecycle(t *testing.T) {
	s, err := NewSession("question")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateInit, s.State())

	require.NoError(t, s.Transition(StateRunning))
	require.NoError(t, s.Transition(StateToolPending))
	require.NoError(t, s.Transition(StateRunning))
	require.NoError(t, s.Finalize(StateDone))

	assert.Equal(t, StateDone, s.State())
	assert.False(t, s.FinalizedAt().IsZero())
}

func TestSessionIllegalTransitions(t *testing.T) {
	s, err := NewSession("question")
	require.NoError(t, err)

	// INIT cannot jump straight to TOOL_PENDING.
	assert.Error(t, s.Transition(StateToolPending))

	require.NoError(t, s.Transition(StateRunning))
	assert.Error(t, s.Transition(StateInit))

	// Finalize rejects non-terminal targets.
	assert.Error(t, s.Finalize(StateRunning))

	require.NoError(t, s.Finalize(StateFailed))
	assert.Error(t, s.Finalize(StateDone), "double finalize")
	assert.Error(t, s.Transition(StateRunning), "terminal state is locked")
}

func TestSessionAppendOnlyTranscript(t *testing.T) {
	s, err := NewSession("the question")
	require.NoError(t, err)
	require.NoError(t, s.Transition(StateRunning))

	calls := []tools.Call{{ID: "c1", Name: "google_search", Arguments: map[string]interface{}{"query": "q"}}}
	require.NoError(t, s.AppendAssistant("searching", calls, model.TokenUsage{InputTokens: 10, OutputTokens: 5}))
	require.NoError(t, s.AppendToolResults([]tools.Result{
		{CallID: "c1", Name: "google_search", Status: tools.StatusSuccess, Output: tools.Output{Content: "found"}},
	}, "browse_webpage"))

	messages := s.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, 1, messages[1].ToolCalls[0].MessageIndex)
	assert.Equal(t, "tool", messages[2].Role)

	assert.Equal(t, 15, s.Tokens())
	assert.Equal(t, 1, s.ToolCalls())
	assert.Equal(t, 0, s.BrowseCalls())

	// Mutating the returned copy does not touch the transcript.
	messages[0].Content = "tampered"
	assert.Equal(t, "the question", s.Messages()[0].Content)
}

func TestSessionBrowseCallCounting(t *testing.T) {
	s, err := NewSession("q")
	require.NoError(t, err)
	require.NoError(t, s.Transition(StateRunning))

	require.NoError(t, s.AppendToolResults([]tools.Result{
		{CallID: "c1", Name: "browse_webpage", Status: tools.StatusSuccess},
		{CallID: "c2", Name: "google_search", Status: tools.StatusSuccess},
	}, "browse_webpage"))

	assert.Equal(t, 2, s.ToolCalls())
	assert.Equal(t, 1, s.BrowseCalls())
}

func TestSessionRejectsMutationAfterFinalize(t *testing.T) {
	s, err := NewSession("q")
	require.NoError(t, err)
	require.NoError(t, s.Transition(StateRunning))
	require.NoError(t, s.Finalize(StateDone))

	assert.Error(t, s.AppendAssistant("late", nil, model.TokenUsage{}))
	assert.Error(t, s.AppendUser("late"))
	assert.Error(t, s.AppendToolResults([]tools.Result{{CallID: "x"}}, "browse_webpage"))
}
