package research

import (
	"context"

	"github.com/altay/deepresearch/pkg/tools"
)

// Event kinds
const (
	EventToken      = "token"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventDone       = "done"
	EventError      = "error"
)

// Event is one element of a session's outward stream. Sequence numbers are
// strictly increasing per session; every session ends with exactly one
// terminal event (done or error), always last.
type Event struct {
	Kind string      `json:"type"`
	Seq  uint64      `json:"seq"`
	Data interface{} `json:"data"`
}

// Terminal reports whether the event closes the stream
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// TokenData carries one streamed text delta
type TokenData struct {
	Text string `json:"text"`
}

// ToolCallData announces a dispatched tool call
type ToolCallData struct {
	CallID    string                 `json:"call_id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ToolResultData carries the outcome of one tool call
type ToolResultData struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Content   string `json:"content"`
	LatencyMS int64  `json:"latency_ms"`
}

// DoneData is the terminal payload of a successful session
type DoneData struct {
	Answer    string           `json:"answer"`
	Citations []tools.Citation `json:"citations,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
	ToolCalls int              `json:"tool_calls"`
}

// ErrorData is the terminal payload of a failed session
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by terminal error events
const (
	ErrCodeModel     = "model_error"
	ErrCodeCancelled = "cancelled"
	ErrCodeTimeout   = "session_timeout"
	ErrCodeInternal  = "internal_error"
)

// emitter stamps sequence numbers and delivers events to the session stream.
// It is owned by the session loop; no other goroutine emits.
type emitter struct {
	seq uint64
	ch  chan<- Event
}

// emit delivers one event, giving up if the session context ends first.
// Returns false when the event was not delivered.
func (e *emitter) emit(ctx context.Context, kind string, data interface{}) bool {
	e.seq++
	select {
	case e.ch <- Event{Kind: kind, Seq: e.seq, Data: data}:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitFinal delivers the stream's terminal event. The send does not watch the
// session context: stream consumers drain the channel through cancellation,
// and every stream must end with its terminal event.
func (e *emitter) emitFinal(kind string, data interface{}) {
	e.seq++
	e.ch <- Event{Kind: kind, Seq: e.seq, Data: data}
}
