// Package gemini implements model.Provider using the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/genai"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/model"
	"github.com/calebhart/parley/pkg/tools"
)

// Provider implements model.Provider against the Gemini API.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// Complete sends the conversation and tool schemas to Gemini and returns the
// assistant's answer and any requested function calls.
func (p *Provider) Complete(ctx context.Context, req model.Request) (*model.Completion, error) {
	slog.Debug("gemini.Complete", "model", req.Model, "messageCount", len(req.Messages))

	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, desc := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        desc.Name,
				Description: desc.Description,
				Parameters:  toSchema(desc),
			})
		}
		cfg.Tools = []*genai.Tool{tool}
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("generate content returned no candidates")
	}

	completion := &model.Completion{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.Text != "":
			completion.Content += part.Text
		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.New().String()
			}
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("encoding function call args: %w", err)
			}
			completion.ToolCalls = append(completion.ToolCalls, domain.ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	return completion, nil
}

// toContents converts domain messages to genai content, mapping assistant
// tool calls to FunctionCall parts and tool results to FunctionResponse parts.
func toContents(msgs []domain.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser, domain.RoleSystem:
			parts := []*genai.Part{{Text: m.Content}}
			if m.Image != nil {
				// Image data is stored base64-encoded; the API wants raw bytes.
				raw, err := base64.StdEncoding.DecodeString(m.Image.Data)
				if err != nil {
					return nil, fmt.Errorf("decoding image data: %w", err)
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: m.Image.MediaType, Data: raw},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})

		case domain.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					return nil, fmt.Errorf("decoding tool call args for %s: %w", tc.Name, err)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case domain.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     m.Name,
						Response: map[string]any{"output": m.Content},
					},
				}},
			})
		}
	}
	return contents, nil
}

// toSchema converts a tool descriptor's JSON schema to the genai schema type.
func toSchema(desc tools.Descriptor) *genai.Schema {
	def := desc.Schema()
	schema := &genai.Schema{Type: genai.TypeObject, Required: def.Required}
	if len(def.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(def.Properties))
	}
	for name, prop := range def.Properties {
		schema.Properties[name] = &genai.Schema{
			Type:        toSchemaType(prop.Type),
			Description: prop.Description,
			Enum:        prop.Enum,
		}
	}
	return schema
}

func toSchemaType(t jsonschema.DataType) genai.Type {
	switch t {
	case jsonschema.String:
		return genai.TypeString
	case jsonschema.Integer:
		return genai.TypeInteger
	case jsonschema.Number:
		return genai.TypeNumber
	case jsonschema.Boolean:
		return genai.TypeBoolean
	case jsonschema.Array:
		return genai.TypeArray
	case jsonschema.Object:
		return genai.TypeObject
	}
	return genai.TypeString
}
