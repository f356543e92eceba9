package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleConversation(t *testing.T, id string, created time.Time) *domain.Conversation {
	t.Helper()
	meta := domain.Metadata{
		ID:        id,
		Title:     "Fix the build",
		Tags:      []string{"ci", "go"},
		CreatedAt: created,
		UpdatedAt: created,
	}
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "Why does the build fail?", Timestamp: created},
		{
			Role: domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{
				{ID: "call_1", Name: "terminal_execute", Arguments: `{"session_id":"s1","command":"go build ./..."}`},
			},
			Timestamp: created.Add(time.Second),
		},
		{
			Role:       domain.RoleTool,
			ToolCallID: "call_1",
			Name:       "terminal_execute",
			Content:    "missing go.sum entry",
			Timestamp:  created.Add(2 * time.Second),
		},
		{Role: domain.RoleAssistant, Content: "Run go mod tidy.", Timestamp: created.Add(3 * time.Second)},
	}
	conv, err := domain.NewConversation(meta, msgs)
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	return conv
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	conv := sampleConversation(t, "c1", created)
	if err := s.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Metadata.Title != conv.Metadata.Title {
		t.Errorf("title = %q, want %q", got.Metadata.Title, conv.Metadata.Title)
	}
	if len(got.Metadata.Tags) != 2 || got.Metadata.Tags[0] != "ci" {
		t.Errorf("tags = %v, want %v", got.Metadata.Tags, conv.Metadata.Tags)
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
		if have.ToolCallID != want.ToolCallID {
			t.Errorf("message %d tool_call_id = %q, want %q", i, have.ToolCallID, want.ToolCallID)
		}
	}
	if len(got.Messages[1].ToolCalls) != 1 || got.Messages[1].ToolCalls[0].Name != "terminal_execute" {
		t.Errorf("tool calls not round-tripped: %+v", got.Messages[1].ToolCalls)
	}
}

func TestSaveReplacesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	conv := sampleConversation(t, "c1", created)
	if err := s.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	shorter, err := domain.NewConversation(conv.Metadata, conv.Messages[:1])
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	if err := s.Save(ctx, shorter); err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	got, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("message count after resave = %d, want 1", len(got.Messages))
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		conv := sampleConversation(t, id, base.Add(time.Duration(i)*time.Hour))
		if err := s.Save(ctx, conv); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list length = %d, want 3", len(list))
	}
	want := []string{"new", "mid", "old"}
	for i, meta := range list {
		if meta.ID != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, meta.ID, want[i])
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv := sampleConversation(t, "c1", time.Now().UTC())
	if err := s.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "c1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete missing = %v, want ErrNotFound", err)
	}
}
