package tools

import (
	"context"
	"sync"
	"time"

	"github.com/altay/deepresearch/internal/metrics"
	"github.com/rs/zerolog"
)

// Dispatcher executes batches of model-requested tool calls against the
// registry. Calls within one batch run concurrently under a bounded limit;
// results come back in request-issuance order regardless of completion order.
type Dispatcher struct {
	registry *Registry
	limit    int
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Registry    *Registry
	Concurrency int
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}

	return &Dispatcher{
		registry: cfg.Registry,
		limit:    cfg.Concurrency,
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Definitions exposes the registered tools in the shape model adapters
// advertise to the backend.
func (d *Dispatcher) Definitions() []Definition {
	return d.registry.Definitions()
}

// Names returns the registered tool names
func (d *Dispatcher) Names() []string {
	return d.registry.Names()
}

// Dispatch runs every call in the batch and returns one result per call, in
// the same order. Tool failures (unknown name, timeout, execution error) are
// returned as error-shaped results, never as dispatch failures.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	sem := make(chan struct{}, d.limit)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = d.cancelledResult(c)
				return
			}

			results[idx] = d.execute(ctx, c)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) execute(ctx context.Context, call Call) Result {
	start := time.Now()

	tool, schema, ok := d.registry.Resolve(call.Name)
	if !ok {
		err := &NotFoundError{Tool: call.Name}
		d.logger.Warn().Str("tool", call.Name).Msg("Tool not found")
		d.metrics.ObserveToolCall(call.Name, StatusError, time.Since(start))
		return errorResult(call, CodeNotFound, err.Error(), time.Since(start))
	}

	if err := validateArgs(schema, call.Arguments); err != nil {
		d.logger.Warn().Str("tool", call.Name).Err(err).Msg("Argument validation failed")
		d.metrics.ObserveToolCall(call.Name, StatusError, time.Since(start))
		return errorResult(call, CodeBadArgs, err.Error(), time.Since(start))
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type invocation struct {
		out Output
		err error
	}
	done := make(chan invocation, 1)

	go func() {
		out, err := tool.Invoke(timeoutCtx, call.Arguments)
		done <- invocation{out: out, err: err}
	}()

	select {
	case inv := <-done:
		latency := time.Since(start)
		if inv.err != nil {
			code := CodeExecution
			msg := inv.err.Error()
			if execErr, ok := inv.err.(*ExecutionError); ok && execErr.Code != "" {
				code = execErr.Code
				msg = execErr.Message
			}
			d.logger.Warn().Str("tool", call.Name).Dur("latency", latency).Err(inv.err).Msg("Tool call failed")
			d.metrics.ObserveToolCall(call.Name, StatusError, latency)
			return errorResult(call, code, msg, latency)
		}

		d.logger.Debug().Str("tool", call.Name).Dur("latency", latency).Msg("Tool call completed")
		d.metrics.ObserveToolCall(call.Name, StatusSuccess, latency)
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Status:  StatusSuccess,
			Output:  inv.out,
			Latency: latency,
		}

	case <-timeoutCtx.Done():
		latency := time.Since(start)
		if ctx.Err() != nil {
			// Session cancelled, not a per-call timeout.
			return d.cancelledResult(call)
		}
		err := &TimeoutError{Tool: call.Name, Timeout: d.timeout}
		d.logger.Warn().Str("tool", call.Name).Dur("latency", latency).Msg("Tool call timed out")
		d.metrics.ObserveToolCall(call.Name, StatusError, latency)
		return errorResult(call, CodeTimeout, err.Error(), latency)
	}
}

func (d *Dispatcher) cancelledResult(call Call) Result {
	return errorResult(call, CodeExecution, "tool call cancelled", 0)
}

func errorResult(call Call, code, message string, latency time.Duration) Result {
	return Result{
		CallID:       call.ID,
		Name:         call.Name,
		Status:       StatusError,
		ErrorCode:    code,
		ErrorMessage: message,
		Latency:      latency,
	}
}
