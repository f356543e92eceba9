package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/calebhart/parley/pkg/domain"
)

func testConversation(t *testing.T) *domain.Conversation {
	t.Helper()
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	meta := domain.Metadata{
		ID:        "conv-42",
		Title:     "Debugging the build",
		Tags:      []string{"build", "ci"},
		CreatedAt: base,
		UpdatedAt: base.Add(5 * time.Minute),
	}
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "Why does the build fail?", Timestamp: base},
		{
			Role:      domain.RoleAssistant,
			Content:   "Let me check the log.",
			ToolCalls: []domain.ToolCall{{ID: "call-1", Name: "terminal_execute", Arguments: `{"session_id":"t1","command":"make"}`}},
			Timestamp: base.Add(time.Minute),
		},
		{
			Role:       domain.RoleTool,
			ToolCallID: "call-1",
			Name:       "terminal_execute",
			Content:    "make: *** missing separator",
			Timestamp:  base.Add(2 * time.Minute),
		},
		{
			Role:      domain.RoleAssistant,
			Content:   "Your Makefile uses spaces. Fix:\n\n```make\nbuild:\n\tgo build ./...\n```\n",
			Timestamp: base.Add(3 * time.Minute),
		},
	}
	conv, err := domain.NewConversation(meta, msgs)
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	return conv
}

func emptyConversation(t *testing.T) *domain.Conversation {
	t.Helper()
	conv, err := domain.NewConversation(domain.Metadata{ID: "empty-1"}, nil)
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	return conv
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("docx", Options{})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("New(docx) err = %v, want ErrUnknownFormat", err)
	}
}

func TestNewKnownFormats(t *testing.T) {
	for _, format := range Formats() {
		e, err := New(format, Options{})
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}
		if e.FormatName() != format {
			t.Errorf("FormatName() = %q, want %q", e.FormatName(), format)
		}
	}
}

func TestExportDeterminism(t *testing.T) {
	conv := testConversation(t)
	opts := Options{IncludeMetadata: true, IncludeTimestamps: true}

	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			e1, err := New(format, opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			a1, err := e1.Export(conv)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}

			e2, err := New(format, opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			a2, err := e2.Export(conv)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}

			if !bytes.Equal(a1.Content, a2.Content) {
				t.Error("repeated export produced different bytes")
			}
		})
	}
}

func TestExportEmptyConversation(t *testing.T) {
	conv := emptyConversation(t)
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			e, err := New(format, Options{IncludeMetadata: true, IncludeTimestamps: true})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			a, err := e.Export(conv)
			if err != nil {
				t.Fatalf("Export of empty conversation: %v", err)
			}
			if len(a.Content) == 0 {
				t.Error("empty conversation produced zero-byte artifact, want minimal document shell")
			}
			if a.Filename == "" {
				t.Error("artifact missing filename")
			}
		})
	}
}

func TestExportDoesNotMutateSource(t *testing.T) {
	conv := testConversation(t)
	before := make([]domain.Message, len(conv.Messages))
	copy(before, conv.Messages)

	for _, format := range Formats() {
		e, err := New(format, Options{IncludeMetadata: true, IncludeTimestamps: true})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := e.Export(conv); err != nil {
			t.Fatalf("Export(%s): %v", format, err)
		}
	}

	if len(conv.Messages) != len(before) {
		t.Fatal("exporter changed message count")
	}
	for i := range before {
		if conv.Messages[i].Role != before[i].Role || conv.Messages[i].Content != before[i].Content {
			t.Errorf("message %d mutated by export", i)
		}
	}
}
