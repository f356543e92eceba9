// Package openai implements model.Provider using the OpenAI chat completions
// API with function calling.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/model"
)

// Provider implements model.Provider against the OpenAI API.
type Provider struct {
	client *openai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new OpenAI provider.
func New(apiKey string) *Provider {
	return &Provider{client: openai.NewClient(apiKey)}
}

// NewWithBaseURL creates a provider against an OpenAI-compatible endpoint.
func NewWithBaseURL(apiKey, baseURL string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Provider{client: openai.NewClientWithConfig(cfg)}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "openai" }

// Complete sends the conversation and tool schemas to the chat completions
// endpoint and returns the assistant's answer and any requested tool calls.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Completion, error) {
	slog.Debug("openai.Complete", "model", req.Model, "messageCount", len(req.Messages), "toolCount", len(req.Tools))

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toChatMessages(req.System, req.Messages),
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	for _, desc := range req.Tools {
		schema := desc.Schema()
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        desc.Name,
				Description: desc.Description,
				Parameters:  schema,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	completion := &model.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion, nil
}

// toChatMessages converts domain messages to the OpenAI wire format.
func toChatMessages(system string, msgs []domain.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range msgs {
		cm := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case domain.RoleAssistant:
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case domain.RoleTool:
			cm.ToolCallID = m.ToolCallID
			cm.Name = m.Name
		case domain.RoleUser:
			if m.Image != nil {
				cm.Content = ""
				cm.MultiContent = []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: m.Content},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", m.Image.MediaType, m.Image.Data),
						},
					},
				}
			}
		}
		out = append(out, cm)
	}
	return out
}
