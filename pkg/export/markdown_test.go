package export

import (
	"strings"
	"testing"
)

func TestMarkdownMetadataOmitted(t *testing.T) {
	conv := testConversation(t)

	e, err := New(FormatMarkdown, Options{IncludeMetadata: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(a.Content)

	if strings.Contains(out, conv.Metadata.Title) {
		t.Error("output contains conversation title despite IncludeMetadata=false")
	}
	if strings.Contains(out, conv.Metadata.ID) {
		t.Error("output contains conversation id despite IncludeMetadata=false")
	}
	for i, msg := range conv.Messages {
		if msg.Content != "" && !strings.Contains(out, msg.Content) {
			t.Errorf("output missing body of message %d", i)
		}
	}
}

func TestMarkdownMessageOrder(t *testing.T) {
	conv := testConversation(t)
	e, err := New(FormatMarkdown, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(a.Content)

	last := -1
	for i, msg := range conv.Messages {
		if msg.Content == "" {
			continue
		}
		pos := strings.Index(out, msg.Content)
		if pos < 0 {
			t.Fatalf("output missing message %d", i)
		}
		if pos < last {
			t.Errorf("message %d rendered out of order", i)
		}
		last = pos
	}
}

func TestMarkdownTimestampOption(t *testing.T) {
	conv := testConversation(t)

	withTS, err := New(FormatMarkdown, Options{IncludeTimestamps: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := withTS.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(a.Content), "2025-03-14T09:26:53Z") {
		t.Error("output missing message timestamp despite IncludeTimestamps=true")
	}

	withoutTS, err := New(FormatMarkdown, Options{IncludeTimestamps: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err = withoutTS.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if strings.Contains(string(a.Content), "2025-03-14T") {
		t.Error("output contains a timestamp despite IncludeTimestamps=false")
	}
}

func TestMarkdownPreservesCodeFences(t *testing.T) {
	conv := testConversation(t)
	e, err := New(FormatMarkdown, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// The fenced Makefile block from the final assistant message must appear
	// verbatim, fence markers included.
	if !strings.Contains(string(a.Content), "```make\nbuild:\n\tgo build ./...\n```") {
		t.Error("fenced code block was not preserved verbatim")
	}
}

func TestMarkdownRendersToolCalls(t *testing.T) {
	conv := testConversation(t)
	e, err := New(FormatMarkdown, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(a.Content)
	if !strings.Contains(out, "terminal_execute") || !strings.Contains(out, "call-1") {
		t.Error("output missing tool call rendering")
	}
}
