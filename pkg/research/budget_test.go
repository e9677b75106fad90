package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altay/deepresearch/pkg/tools"
	"github.com/altay/deepresearch/pkg/workflow"
)

func guardConfig(maxCalls int, browse bool) workflow.Config {
	cfg := workflow.DefaultConfig()
	cfg.MaxToolCalls = maxCalls
	cfg.UseBrowseAgent = browse
	return cfg
}

func searchBatch(n int) []tools.Call {
	batch := make([]tools.Call, n)
	for i := range batch {
		batch[i] = tools.Call{Name: "google_search"}
	}
	return batch
}

func TestBudgetGuardToolCalls(t *testing.T) {
	guard := NewBudgetGuard(guardConfig(2, false))
	s, err := NewSession("q")
	require.NoError(t, err)
	require.NoError(t, s.Transition(StateRunning))

	assert.NoError(t, guard.CheckDispatch(s, searchBatch(2)))
	assert.Error(t, guard.CheckDispatch(s, searchBatch(3)))

	require.NoError(t, s.AppendToolResults([]tools.Result{
		{CallID: "c1", Name: "google_search"}, {CallID: "c2", Name: "google_search"},
	}, "browse_webpage"))

	err = guard.CheckDispatch(s, searchBatch(1))
	require.Error(t, err)

	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, BudgetToolCalls, budgetErr.Kind)
	assert.Equal(t, 2, budgetErr.Limit)
}

func TestBudgetGuardBrowseSubBudget(t *testing.T) {
	// max_tool_calls=10, fraction 0.5 -> 5 browse calls allowed.
	guard := NewBudgetGuard(guardConfig(10, true))
	s, err := NewSession("q")
	require.NoError(t, err)
	require.NoError(t, s.Transition(StateRunning))

	browse := make([]tools.Call, 5)
	for i := range browse {
		browse[i] = tools.Call{Name: "browse_webpage"}
	}
	assert.NoError(t, guard.CheckDispatch(s, browse))

	err = guard.CheckDispatch(s, append(browse, tools.Call{Name: "browse_webpage"}))
	require.Error(t, err)

	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, BudgetBrowseCalls, budgetErr.Kind)
}

func TestBudgetGuardBrowseDisabled(t *testing.T) {
	guard := NewBudgetGuard(guardConfig(10, false))
	s, err := NewSession("q")
	require.NoError(t, err)

	err = guard.CheckDispatch(s, []tools.Call{{Name: "browse_webpage"}})
	require.Error(t, err)

	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, BudgetBrowseCalls, budgetErr.Kind)
}

func TestBudgetGuardTokens(t *testing.T) {
	cfg := guardConfig(10, false)
	cfg.MaxTokens = 100
	guard := NewBudgetGuard(cfg)

	s, err := NewSession("q")
	require.NoError(t, err)

	assert.NoError(t, guard.CheckTurn(s, 100))

	err = guard.CheckTurn(s, 101)
	require.Error(t, err)

	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, BudgetTokens, budgetErr.Kind)
}
