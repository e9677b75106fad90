package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/altay/deepresearch/pkg/tools"
)

// OpenAIClient adapts OpenAI chat completions to the streaming turn interface
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI-backed model client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the backend name
func (c *OpenAIClient) Provider() string { return "openai" }

// StreamTurn issues one streaming chat completion. Text deltas are emitted as
// they arrive; tool calls are accumulated and only surfaced on the terminal
// event once the stream completes.
func (c *OpenAIClient) StreamTurn(ctx context.Context, req TurnRequest) <-chan TurnEvent {
	events := make(chan TurnEvent, 16)

	go func() {
		defer close(events)

		params := c.buildParams(req)
		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var acc openai.ChatCompletionAccumulator

		for stream.Next() {
			if ctx.Err() != nil {
				events <- TurnEvent{Err: ctx.Err()}
				return
			}

			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					events <- TurnEvent{Delta: delta}
				}
			}
		}

		if err := stream.Err(); err != nil {
			events <- TurnEvent{Err: classifyErr(err)}
			return
		}

		turn, err := c.completionToTurn(&acc.ChatCompletion)
		if err != nil {
			events <- TurnEvent{Err: err}
			return
		}
		events <- TurnEvent{Turn: turn}
	}()

	return events
}

func (c *OpenAIClient) buildParams(req TurnRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: encodeOpenAIToolCalls(msg.ToolCalls),
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.InputSchema()),
			},
		})
	}

	return params
}

func encodeOpenAIToolCalls(calls []tools.Call) []openai.ChatCompletionMessageToolCall {
	encoded := make([]openai.ChatCompletionMessageToolCall, len(calls))
	for i, call := range calls {
		args, _ := json.Marshal(call.Arguments)
		encoded[i] = openai.ChatCompletionMessageToolCall{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      call.Name,
				Arguments: string(args),
			},
		}
	}
	return encoded
}

func (c *OpenAIClient) completionToTurn(completion *openai.ChatCompletion) (*Turn, error) {
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	message := completion.Choices[0].Message
	turn := &Turn{
		Content: message.Content,
		Usage: TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}

	for _, tc := range message.ToolCalls {
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("malformed tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		turn.ToolCalls = append(turn.ToolCalls, tools.Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return turn, nil
}
