package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/altay/deepresearch/pkg/tools"
)

// AnthropicClient adapts the Anthropic Messages API to the streaming turn
// interface
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates an Anthropic-backed model client
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the backend name
func (c *AnthropicClient) Provider() string { return "anthropic" }

// StreamTurn issues one streaming message request. Text deltas are emitted as
// they arrive; tool-use blocks are accumulated and only surfaced on the
// terminal event once the stream completes.
func (c *AnthropicClient) StreamTurn(ctx context.Context, req TurnRequest) <-chan TurnEvent {
	events := make(chan TurnEvent, 16)

	go func() {
		defer close(events)

		params, err := c.buildParams(req)
		if err != nil {
			events <- TurnEvent{Err: err}
			return
		}

		stream := c.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var message anthropic.Message
		for stream.Next() {
			if ctx.Err() != nil {
				events <- TurnEvent{Err: ctx.Err()}
				return
			}

			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				events <- TurnEvent{Err: fmt.Errorf("failed to accumulate stream event: %w", err)}
				return
			}

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					events <- TurnEvent{Delta: delta.Text}
				}
			}
		}

		if err := stream.Err(); err != nil {
			events <- TurnEvent{Err: classifyErr(err)}
			return
		}

		turn, err := c.messageToTurn(&message)
		if err != nil {
			events <- TurnEvent{Err: err}
			return
		}
		events <- TurnEvent{Turn: turn}
	}()

	return events
}

func (c *AnthropicClient) buildParams(req TurnRequest) (anthropic.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  convertAnthropicMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	for _, def := range req.Tools {
		schema := def.InputSchema()
		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
			},
		}
		if required, ok := schema["required"].([]string); ok {
			toolParam.InputSchema.Required = required
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return params, nil
}

// convertAnthropicMessages maps the transcript onto the Messages API shape.
// Tool results must follow the assistant's tool_use message as content blocks
// of a single user message, so consecutive tool-role entries are coalesced.
func convertAnthropicMessages(messages []Message) []anthropic.MessageParam {
	var converted []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			converted = append(converted, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			pendingResults = append(pendingResults,
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case "user":
			flushResults()
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.Name))
			}
			if len(blocks) > 0 {
				converted = append(converted, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flushResults()

	return converted
}

func (c *AnthropicClient) messageToTurn(message *anthropic.Message) (*Turn, error) {
	turn := &Turn{
		Usage: TokenUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Content += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			raw := b.JSON.Input.Raw()
			if raw == "" {
				raw = string(b.Input)
			}
			if raw != "" && raw != "null" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return nil, fmt.Errorf("malformed tool input for %s: %w", b.Name, err)
				}
			}
			turn.ToolCalls = append(turn.ToolCalls, tools.Call{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	return turn, nil
}
