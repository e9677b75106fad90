package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/altay/deepresearch/internal/metrics"
	"github.com/altay/deepresearch/pkg/model"
	"github.com/altay/deepresearch/pkg/tools"
	"github.com/altay/deepresearch/pkg/workflow"
)

// truncationNotice is appended to the transcript when a budget veto forces
// the final summarization turn.
const truncationNotice = "Tool budget exhausted. Provide your best final answer now using only the evidence gathered so far. Do not request any more tools."

// Runner drives one session's model-turn / tool-dispatch loop
type Runner struct {
	client     model.Client
	dispatcher *tools.Dispatcher
	parser     *model.MarkupParser
	guard      *BudgetGuard
	cfg        workflow.Config
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	// retryBase is the first backoff delay; doubled on each retry
	retryBase time.Duration
}

// RunnerConfig wires a runner's collaborators
type RunnerConfig struct {
	Client     model.Client
	Dispatcher *tools.Dispatcher
	Parser     *model.MarkupParser
	Config     workflow.Config
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// NewRunner creates a session runner
func NewRunner(cfg RunnerConfig) *Runner {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Default()
	}
	return &Runner{
		client:     cfg.Client,
		dispatcher: cfg.Dispatcher,
		parser:     cfg.Parser,
		guard:      NewBudgetGuard(cfg.Config),
		cfg:        cfg.Config,
		metrics:    m,
		logger:     cfg.Logger.With().Str("component", "research").Logger(),
		retryBase:  time.Second,
	}
}

// Run executes the session loop to completion, emitting events on the given
// channel. The channel is closed after the terminal event. Run honors the
// session wall-clock ceiling and stops promptly on context cancellation.
func (r *Runner) Run(ctx context.Context, session *Session, events chan<- Event) {
	defer close(events)

	if r.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SessionTimeout)
		defer cancel()
	}

	em := &emitter{ch: events}
	logger := r.logger.With().Str("session_id", session.ID).Str("workflow", r.cfg.Workflow).Logger()

	if err := session.Transition(StateRunning); err != nil {
		r.fail(session, em, logger, ErrCodeInternal, err)
		return
	}

	var citations []tools.Citation
	var answer string

	for {
		if err := ctx.Err(); err != nil {
			r.cancelled(session, em, logger, err)
			return
		}

		if err := r.guard.CheckTurn(session, model.EstimateTokens(session.Messages())); err != nil {
			logger.Info().Err(err).Msg("Token budget reached, requesting final answer")
			r.finishTruncated(ctx, session, em, logger, citations, BudgetTokens)
			return
		}

		turn, err := r.runTurn(ctx, session, em, r.toolDefinitions())
		if err != nil {
			if ctx.Err() != nil {
				r.cancelled(session, em, logger, ctx.Err())
				return
			}
			logger.Error().Err(err).Msg("Model turn failed")
			r.fail(session, em, logger, ErrCodeModel, err)
			return
		}

		content, calls := r.extractCalls(turn)

		if len(calls) == 0 {
			if err := session.AppendAssistant(content, nil, turn.Usage); err != nil {
				r.fail(session, em, logger, ErrCodeInternal, err)
				return
			}
			answer = content
			break
		}

		if err := r.guard.CheckDispatch(session, calls); err != nil {
			kind := BudgetToolCalls
			var budgetErr *BudgetExceededError
			if errors.As(err, &budgetErr) {
				kind = budgetErr.Kind
			}
			logger.Info().Err(err).Int("batch", len(calls)).Msg("Tool budget reached, requesting final answer")

			// The vetoed calls are never dispatched and never committed;
			// the transcript keeps only the assistant prose.
			if content != "" {
				if appendErr := session.AppendAssistant(content, nil, turn.Usage); appendErr != nil {
					r.fail(session, em, logger, ErrCodeInternal, appendErr)
					return
				}
			}
			r.finishTruncated(ctx, session, em, logger, citations, kind)
			return
		}

		if err := session.AppendAssistant(content, calls, turn.Usage); err != nil {
			r.fail(session, em, logger, ErrCodeInternal, err)
			return
		}

		for _, call := range calls {
			em.emit(ctx, EventToolCall, ToolCallData{CallID: call.ID, Name: call.Name, Arguments: call.Arguments})
		}

		if err := session.Transition(StateToolPending); err != nil {
			r.fail(session, em, logger, ErrCodeInternal, err)
			return
		}

		results := r.dispatcher.Dispatch(ctx, calls)
		if ctx.Err() != nil {
			r.cancelled(session, em, logger, ctx.Err())
			return
		}

		if err := session.AppendToolResults(results, tools.BrowseToolName); err != nil {
			r.fail(session, em, logger, ErrCodeInternal, err)
			return
		}

		for _, res := range results {
			em.emit(ctx, EventToolResult, ToolResultData{
				CallID:    res.CallID,
				Name:      res.Name,
				Status:    res.Status,
				Content:   res.Content(),
				LatencyMS: res.Latency.Milliseconds(),
			})
			if !res.IsError() {
				citations = append(citations, res.Output.Citations...)
			}
		}

		if err := session.Transition(StateRunning); err != nil {
			r.fail(session, em, logger, ErrCodeInternal, err)
			return
		}
	}

	if err := session.Finalize(StateDone); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize session")
		return
	}
	r.metrics.SessionsTotal.WithLabelValues(string(StateDone)).Inc()
	em.emitFinal(EventDone, DoneData{
		Answer:    answer,
		Citations: dedupeCitations(citations),
		ToolCalls: session.ToolCalls(),
	})
	logger.Info().Int("tool_calls", session.ToolCalls()).Int("tokens", session.Tokens()).Msg("Session done")
}

// runTurn issues one model turn, retrying transient failures with exponential
// backoff. Retries happen only while no delta has been emitted, so a re-issued
// turn sees identical session state and commits nothing twice.
func (r *Runner) runTurn(ctx context.Context, session *Session, em *emitter, defs []tools.Definition) (*model.Turn, error) {
	req := model.TurnRequest{
		Model:        r.cfg.Model,
		Messages:     session.Messages(),
		Tools:        defs,
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
		SystemPrompt: systemPrompt(r.cfg),
	}

	var lastErr error
	delay := r.retryBase

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			r.metrics.ModelRetriesTotal.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		start := time.Now()
		turn, deltas, err := r.streamOneTurn(ctx, em, req)
		if err == nil {
			r.metrics.ObserveModelTurn(r.client.Provider(), "success", time.Since(start))
			return turn, nil
		}

		r.metrics.ObserveModelTurn(r.client.Provider(), "error", time.Since(start))
		lastErr = err

		// Once tokens have been flushed outward the turn is no longer
		// safely re-issuable.
		if deltas > 0 || !model.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("model turn failed after %d retries: %w", r.cfg.MaxRetries, lastErr)
}

// streamOneTurn consumes a single turn stream, flushing each delta outward as
// it arrives. Returns the number of deltas emitted alongside any error.
func (r *Runner) streamOneTurn(ctx context.Context, em *emitter, req model.TurnRequest) (*model.Turn, int, error) {
	deltas := 0
	for ev := range r.client.StreamTurn(ctx, req) {
		switch {
		case ev.Err != nil:
			return nil, deltas, ev.Err
		case ev.Turn != nil:
			return ev.Turn, deltas, nil
		case ev.Delta != "":
			deltas++
			em.emit(ctx, EventToken, TokenData{Text: ev.Delta})
		}
	}
	return nil, deltas, errors.New("model stream ended without a terminal element")
}

// extractCalls returns the turn's assistant content and tool calls. When the
// backend produced no native calls, the markup parser recovers calls embedded
// in the text and strips the markup from the committed content.
func (r *Runner) extractCalls(turn *model.Turn) (string, []tools.Call) {
	if len(turn.ToolCalls) > 0 || r.parser == nil {
		return turn.Content, turn.ToolCalls
	}

	calls := r.parser.Parse(turn.Content)
	if len(calls) == 0 {
		return turn.Content, nil
	}
	return r.parser.StripCalls(turn.Content), calls
}

// finishTruncated handles a budget veto: one final tool-free summarization
// turn, then DONE with a truncation marker. A veto is graceful, never FAILED.
func (r *Runner) finishTruncated(ctx context.Context, session *Session, em *emitter, logger zerolog.Logger, citations []tools.Citation, kind string) {
	r.metrics.BudgetExceededTotal.WithLabelValues(kind).Inc()

	if session.State() == StateToolPending {
		if err := session.Transition(StateRunning); err != nil {
			r.fail(session, em, logger, ErrCodeInternal, err)
			return
		}
	}
	if err := session.AppendUser(truncationNotice); err != nil {
		r.fail(session, em, logger, ErrCodeInternal, err)
		return
	}

	// Final turn advertises no tools, so the model cannot request more.
	answer := ""
	turn, err := r.runTurn(ctx, session, em, nil)
	if err != nil {
		if ctx.Err() != nil {
			r.cancelled(session, em, logger, ctx.Err())
			return
		}
		logger.Error().Err(err).Msg("Summarization turn failed, finalizing with partial evidence")
	} else {
		content, _ := r.extractCalls(turn)
		answer = content
		if err := session.AppendAssistant(content, nil, turn.Usage); err != nil {
			logger.Error().Err(err).Msg("Failed to commit summarization turn")
		}
	}

	if err := session.Finalize(StateBudgetExceeded); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize session")
		return
	}
	r.metrics.SessionsTotal.WithLabelValues(string(StateBudgetExceeded)).Inc()
	em.emitFinal(EventDone, DoneData{
		Answer:    answer,
		Citations: dedupeCitations(citations),
		Truncated: true,
		ToolCalls: session.ToolCalls(),
	})
	logger.Info().Int("tool_calls", session.ToolCalls()).Msg("Session done with truncated answer")
}

func (r *Runner) fail(session *Session, em *emitter, logger zerolog.Logger, code string, err error) {
	if finErr := session.Finalize(StateFailed); finErr != nil {
		logger.Error().Err(finErr).Msg("Failed to finalize session")
		return
	}
	r.metrics.SessionsTotal.WithLabelValues(string(StateFailed)).Inc()
	em.emitFinal(EventError, ErrorData{Code: code, Message: err.Error()})
}

// cancelled finalizes a session whose context ended. The terminal event is
// still delivered; the stream must never close without one.
func (r *Runner) cancelled(session *Session, em *emitter, logger zerolog.Logger, cause error) {
	code := ErrCodeCancelled
	if errors.Is(cause, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}

	if err := session.Finalize(StateFailed); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize session")
		return
	}
	r.metrics.SessionsTotal.WithLabelValues(string(StateFailed)).Inc()
	logger.Info().Str("code", code).Msg("Session cancelled")

	em.emitFinal(EventError, ErrorData{Code: code, Message: cause.Error()})
}

func (r *Runner) toolDefinitions() []tools.Definition {
	if r.dispatcher == nil {
		return nil
	}
	return r.dispatcher.Definitions()
}

func dedupeCitations(citations []tools.Citation) []tools.Citation {
	if len(citations) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(citations))
	out := make([]tools.Citation, 0, len(citations))
	for _, c := range citations {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}

// systemPrompt renders the research instructions for a resolved workflow
func systemPrompt(cfg workflow.Config) string {
	prompt := "You are a research assistant. Answer the user's question by gathering evidence with the available tools, then synthesize a final answer with citations."
	if cfg.UseBrowseAgent {
		prompt += " Use google_search to find sources and browse_webpage to read promising pages in full."
	} else {
		prompt += " Use google_search to find supporting sources."
	}
	if cfg.SearchDomainFilter != "" {
		prompt += fmt.Sprintf(" Restrict searches to %s.", cfg.SearchDomainFilter)
	}
	return prompt
}
