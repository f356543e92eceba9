// Package model defines the contract between the agent loop and an LLM
// provider supporting function/tool-calling semantics.
package model

import (
	"context"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/tools"
)

// Request is a single completion request: the full message history, the tool
// schemas the model may call, and generation parameters.
type Request struct {
	Model       string
	System      string
	Messages    []domain.Message
	Tools       []tools.Descriptor
	MaxTokens   int
	Temperature float32
}

// Completion is the model's response: either a final text answer, a set of
// tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []domain.ToolCall
}

// Provider represents a service that provides LLMs (e.g. OpenAI, Gemini).
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Complete sends the request and blocks until the full response is
	// available.
	Complete(ctx context.Context, req Request) (*Completion, error)
}
