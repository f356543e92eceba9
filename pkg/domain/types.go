package domain

import "time"

// ToolCall represents a tool invocation requested by the model.
// Arguments is the JSON-encoded argument object as received from the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult represents the outcome of a tool call execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Image is an inline image payload attached to a message.
type Image struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"` // base64-encoded
}

// Message is a single entry in a conversation.
// Content may be empty when the message carries tool calls.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set when Role == RoleTool
	Name       string     `json:"name,omitempty"`         // tool name, set when Role == RoleTool
	Image      *Image     `json:"image,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
