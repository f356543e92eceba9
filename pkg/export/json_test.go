package export

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	conv := testConversation(t)

	e, err := New(FormatJSON, Options{IncludeMetadata: true, IncludeTimestamps: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := ParseJSON(a.Content)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if got.Metadata.ID != conv.Metadata.ID {
		t.Errorf("id = %q, want %q", got.Metadata.ID, conv.Metadata.ID)
	}
	if got.Metadata.Title != conv.Metadata.Title {
		t.Errorf("title = %q, want %q", got.Metadata.Title, conv.Metadata.Title)
	}
	if len(got.Messages) != len(conv.Messages) {
		t.Fatalf("message count = %d, want %d", len(got.Messages), len(conv.Messages))
	}
	for i := range conv.Messages {
		want, have := conv.Messages[i], got.Messages[i]
		if have.Role != want.Role {
			t.Errorf("message %d role = %s, want %s", i, have.Role, want.Role)
		}
		if have.Content != want.Content {
			t.Errorf("message %d content = %q, want %q", i, have.Content, want.Content)
		}
		if !have.Timestamp.Equal(want.Timestamp) {
			t.Errorf("message %d timestamp = %v, want %v", i, have.Timestamp, want.Timestamp)
		}
		if len(have.ToolCalls) != len(want.ToolCalls) {
			t.Errorf("message %d tool call count = %d, want %d", i, len(have.ToolCalls), len(want.ToolCalls))
		}
	}
}

func TestJSONOmitsExcludedFields(t *testing.T) {
	conv := testConversation(t)

	e, err := New(FormatJSON, Options{IncludeMetadata: false, IncludeTimestamps: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Excluded fields must be absent, not null.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(a.Content, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "title", "tags", "created_at", "updated_at"} {
		if _, present := raw[key]; present {
			t.Errorf("key %q present despite IncludeMetadata=false", key)
		}
	}
	if strings.Contains(string(a.Content), `"timestamp"`) {
		t.Error("message timestamps present despite IncludeTimestamps=false")
	}
	if strings.Contains(string(a.Content), "null") {
		t.Error("output contains null; excluded fields must be omitted")
	}

	var msgs struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(a.Content, &msgs); err != nil {
		t.Fatalf("Unmarshal messages: %v", err)
	}
	if len(msgs.Messages) != len(conv.Messages) {
		t.Errorf("message count = %d, want %d", len(msgs.Messages), len(conv.Messages))
	}
}

func TestJSONEmptyConversationHasMessagesArray(t *testing.T) {
	conv := emptyConversation(t)
	e, err := New(FormatJSON, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(a.Content, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Messages == nil {
		t.Error("messages key absent; empty conversation must serialize an empty array")
	}
}
