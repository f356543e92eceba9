package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewConversation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	meta := Metadata{ID: "conv-1", Title: "Test", CreatedAt: now, UpdatedAt: now}

	t.Run("valid tool call chain", func(t *testing.T) {
		msgs := []Message{
			{Role: RoleUser, Content: "list files"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-1", Name: "terminal_execute", Arguments: `{"command":"ls"}`}}},
			{Role: RoleTool, ToolCallID: "call-1", Name: "terminal_execute", Content: "a.txt"},
			{Role: RoleAssistant, Content: "Found a.txt"},
		}
		conv, err := NewConversation(meta, msgs)
		if err != nil {
			t.Fatalf("NewConversation: %v", err)
		}
		if len(conv.Messages) != 4 {
			t.Errorf("Messages len = %d, want 4", len(conv.Messages))
		}
	})

	t.Run("tool message with unknown tool_call_id is rejected", func(t *testing.T) {
		msgs := []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleTool, ToolCallID: "never-issued", Content: "orphan"},
		}
		_, err := NewConversation(meta, msgs)
		if !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("err = %v, want ErrMalformedMessage", err)
		}
	})

	t.Run("tool message before the assistant call is rejected", func(t *testing.T) {
		msgs := []Message{
			{Role: RoleTool, ToolCallID: "call-1", Content: "early"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-1", Name: "x"}}},
		}
		_, err := NewConversation(meta, msgs)
		if !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("err = %v, want ErrMalformedMessage", err)
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		msgs := []Message{{Role: Role("narrator"), Content: "meanwhile"}}
		_, err := NewConversation(meta, msgs)
		if !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("err = %v, want ErrMalformedMessage", err)
		}
	})

	t.Run("empty conversation is valid", func(t *testing.T) {
		conv, err := NewConversation(meta, nil)
		if err != nil {
			t.Fatalf("NewConversation: %v", err)
		}
		if len(conv.Messages) != 0 {
			t.Errorf("Messages len = %d, want 0", len(conv.Messages))
		}
	})
}
