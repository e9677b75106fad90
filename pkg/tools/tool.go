package tools

import (
	"context"
	"fmt"
	"time"
)

// Tool is the uniform capability contract. The dispatcher never interprets a
// tool's payload beyond this envelope.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Param
	Invoke(ctx context.Context, args map[string]interface{}) (Output, error)
}

// Param describes one tool argument
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Output is the normalized tool payload
type Output struct {
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
}

// Citation points at a source backing part of a tool output
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Call is one tool-call request emitted by the model. It is only constructed
// from a syntactically complete emission.
type Call struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Arguments    map[string]interface{} `json:"arguments"`
	MessageIndex int                    `json:"message_index"`
}

// Result status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of one dispatched call. Results are delivered to the
// session in request-issuance order.
type Result struct {
	CallID       string        `json:"call_id"`
	Name         string        `json:"name"`
	Status       string        `json:"status"`
	Output       Output        `json:"output,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// IsError reports whether the call failed
func (r Result) IsError() bool {
	return r.Status == StatusError
}

// Content returns the payload the model should observe for this result.
// Errors are rendered as error-shaped content so the model can adapt.
func (r Result) Content() string {
	if r.IsError() {
		return fmt.Sprintf("error (%s): %s", r.ErrorCode, r.ErrorMessage)
	}
	return r.Output.Content
}

// Error codes surfaced to the model as tool-result errors
const (
	CodeNotFound  = "tool_not_found"
	CodeTimeout   = "tool_timeout"
	CodeExecution = "tool_execution"
	CodeBadArgs   = "invalid_arguments"
)

// NotFoundError reports a call that resolved no registered tool
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Tool)
}

// TimeoutError reports a call that exceeded its per-call timeout
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %v", e.Tool, e.Timeout)
}

// ExecutionError is raised by a tool implementation
type ExecutionError struct {
	Code    string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool execution failed (%s): %s", e.Code, e.Message)
}
