package research

import (
	"fmt"

	"github.com/altay/deepresearch/pkg/tools"
	"github.com/altay/deepresearch/pkg/workflow"
)

// Budget kinds reported on veto
const (
	BudgetToolCalls   = "tool_calls"
	BudgetBrowseCalls = "browse_calls"
	BudgetTokens      = "tokens"
)

// BudgetExceededError is a veto, not a failure: the loop responds by driving
// the session to a graceful truncated answer.
type BudgetExceededError struct {
	Kind  string
	Used  int
	Limit int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s (%d/%d)", e.Kind, e.Used, e.Limit)
}

// BudgetGuard enforces the configured ceilings on cumulative tool calls,
// browse calls, and token usage. Browse calls draw on an independent
// sub-budget: a configured fraction of max_tool_calls.
type BudgetGuard struct {
	maxToolCalls   int
	maxBrowseCalls int
	maxTokens      int
	browseTool     string
}

// NewBudgetGuard derives budget ceilings from a resolved workflow config
func NewBudgetGuard(cfg workflow.Config) *BudgetGuard {
	maxBrowse := 0
	if cfg.UseBrowseAgent {
		maxBrowse = int(float64(cfg.MaxToolCalls) * cfg.BrowseBudgetFraction)
	}
	return &BudgetGuard{
		maxToolCalls:   cfg.MaxToolCalls,
		maxBrowseCalls: maxBrowse,
		maxTokens:      cfg.MaxTokens,
		browseTool:     tools.BrowseToolName,
	}
}

// CheckDispatch vetoes a batch that would push the session past its tool-call
// ceiling or the browse sub-budget.
func (g *BudgetGuard) CheckDispatch(session *Session, batch []tools.Call) error {
	used := session.ToolCalls()
	if used+len(batch) > g.maxToolCalls {
		return &BudgetExceededError{Kind: BudgetToolCalls, Used: used + len(batch), Limit: g.maxToolCalls}
	}

	browseInBatch := 0
	for _, call := range batch {
		if call.Name == g.browseTool {
			browseInBatch++
		}
	}
	if browseInBatch > 0 {
		usedBrowse := session.BrowseCalls()
		if usedBrowse+browseInBatch > g.maxBrowseCalls {
			return &BudgetExceededError{Kind: BudgetBrowseCalls, Used: usedBrowse + browseInBatch, Limit: g.maxBrowseCalls}
		}
	}

	return nil
}

// CheckTurn vetoes a model turn whose projected token usage would exceed the
// session's token ceiling.
func (g *BudgetGuard) CheckTurn(session *Session, projected int) error {
	used := session.Tokens()
	if used+projected > g.maxTokens {
		return &BudgetExceededError{Kind: BudgetTokens, Used: used + projected, Limit: g.maxTokens}
	}
	return nil
}
