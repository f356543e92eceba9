package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedMessage indicates a message that violates the conversation
// invariants (unknown role, or a tool result referencing no prior tool call).
var ErrMalformedMessage = errors.New("malformed message")

// Metadata holds conversation-level attributes.
type Metadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation is an ordered, read-only-once-loaded sequence of messages plus
// metadata. Message order is insertion order and is semantically meaningful;
// consumers (exporters in particular) must never reorder it.
type Conversation struct {
	Metadata Metadata  `json:"metadata"`
	Messages []Message `json:"messages"`
}

// NewConversation validates msgs against the conversation invariants and
// returns the assembled aggregate. Every tool-role message must reference a
// tool_call_id that appeared in a prior assistant message's tool calls.
func NewConversation(meta Metadata, msgs []Message) (*Conversation, error) {
	seen := make(map[string]bool)
	for i, msg := range msgs {
		if !msg.Role.Valid() {
			return nil, fmt.Errorf("message %d: unknown role %q: %w", i, msg.Role, ErrMalformedMessage)
		}
		switch msg.Role {
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				seen[tc.ID] = true
			}
		case RoleTool:
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("message %d: tool message missing tool_call_id: %w", i, ErrMalformedMessage)
			}
			if !seen[msg.ToolCallID] {
				return nil, fmt.Errorf("message %d: tool message references unknown tool_call_id %q: %w", i, msg.ToolCallID, ErrMalformedMessage)
			}
		}
	}
	return &Conversation{Metadata: meta, Messages: msgs}, nil
}
