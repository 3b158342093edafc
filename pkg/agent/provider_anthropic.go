package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicBackend streams from the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
	cfg    BackendConfig
}

// NewAnthropicBackend creates a new Anthropic backend
func NewAnthropicBackend(cfg BackendConfig) *AnthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

// Provider returns the provider name
func (b *AnthropicBackend) Provider() string {
	return "anthropic"
}

// Generate streams one message.
func (b *AnthropicBackend) Generate(ctx context.Context, req Request, sink ChunkSink) (*Response, error) {
	params, err := b.params(req)
	if err != nil {
		return nil, err
	}

	stream := b.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream event: %w", err)
		}

		ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		switch delta := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if delta.Text != "" {
				sink.emit(StreamChunk{Content: delta.Text})
			}
		case anthropic.InputJSONDelta:
			if delta.PartialJSON != "" {
				sink.emit(StreamChunk{Content: delta.PartialJSON, ToolCallFragment: true})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	var content strings.Builder
	resp := &Response{
		Usage: &TokenUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}
	for _, block := range message.Content {
		switch blk := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(blk.Text)
		case anthropic.ToolUseBlock:
			args := string(blk.Input)
			if args == "" {
				args = "{}"
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        blk.ID,
				Name:      blk.Name,
				Arguments: args,
			})
		}
	}
	resp.Content = content.String()
	return resp, nil
}

// Complete runs a single non-streaming prompt without tools.
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(b.cfg.Model),
		MaxTokens:   b.maxTokens(),
		Temperature: anthropic.Float(b.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	return out.String(), nil
}

func (b *AnthropicBackend) maxTokens() int64 {
	if b.cfg.MaxTokens > 0 {
		return int64(b.cfg.MaxTokens)
	}
	return anthropicDefaultMaxTokens
}

func (b *AnthropicBackend) params(req Request) (anthropic.MessageNewParams, error) {
	messages := []anthropic.MessageParam{}
	system := []anthropic.TextBlockParam{}
	if req.SystemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.cfg.Model),
		Messages:    messages,
		MaxTokens:   b.maxTokens(),
		Temperature: anthropic.Float(b.cfg.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	if len(req.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, tool := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.InputSchema["properties"],
				},
			}
			if required, ok := tool.InputSchema["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}
	return params, nil
}
