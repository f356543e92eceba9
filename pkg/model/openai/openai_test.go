package openai

import (
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/calebhart/parley/pkg/domain"
)

func TestToChatMessagesSystemPrompt(t *testing.T) {
	out := toChatMessages("be terse", []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	})
	if len(out) != 2 {
		t.Fatalf("message count = %d, want 2", len(out))
	}
	if out[0].Role != goopenai.ChatMessageRoleSystem || out[0].Content != "be terse" {
		t.Errorf("system message = %+v", out[0])
	}

	out = toChatMessages("", []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	if len(out) != 1 {
		t.Errorf("empty system prompt still produced a message: %+v", out)
	}
}

func TestToChatMessagesToolRoundTrip(t *testing.T) {
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "list files"},
		{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{
				{ID: "call_1", Name: "terminal_execute", Arguments: `{"session_id":"s1","command":"ls"}`},
			},
		},
		{Role: domain.RoleTool, ToolCallID: "call_1", Name: "terminal_execute", Content: "a.txt"},
	}
	out := toChatMessages("", msgs)
	if len(out) != 3 {
		t.Fatalf("message count = %d, want 3", len(out))
	}

	assistant := out[1]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d, want 1", len(assistant.ToolCalls))
	}
	tc := assistant.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != goopenai.ToolTypeFunction || tc.Function.Name != "terminal_execute" {
		t.Errorf("tool call = %+v", tc)
	}

	tool := out[2]
	if tool.Role != "tool" || tool.ToolCallID != "call_1" || tool.Name != "terminal_execute" {
		t.Errorf("tool message = %+v", tool)
	}
	if tool.Content != "a.txt" {
		t.Errorf("tool content = %q", tool.Content)
	}
}

func TestToChatMessagesImageBecomesDataURL(t *testing.T) {
	msgs := []domain.Message{
		{
			Role:    domain.RoleUser,
			Content: "what is this?",
			Image:   &domain.Image{MediaType: "image/png", Data: "aGVsbG8="},
		},
	}
	out := toChatMessages("", msgs)
	if len(out) != 1 {
		t.Fatalf("message count = %d", len(out))
	}
	m := out[0]
	if m.Content != "" {
		t.Errorf("plain content should be empty when MultiContent is used, got %q", m.Content)
	}
	if len(m.MultiContent) != 2 {
		t.Fatalf("multi content parts = %d, want 2", len(m.MultiContent))
	}
	if m.MultiContent[0].Text != "what is this?" {
		t.Errorf("text part = %q", m.MultiContent[0].Text)
	}
	url := m.MultiContent[1].ImageURL.URL
	if !strings.HasPrefix(url, "data:image/png;base64,aGVsbG8=") {
		t.Errorf("image url = %q", url)
	}
}
