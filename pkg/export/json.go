package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/calebhart/parley/pkg/domain"
)

// JSONExporter produces a direct structural serialization of a conversation.
// Message order is preserved. Fields excluded by options are omitted rather
// than emitted as null, so consumers must not read key absence as "no value".
type JSONExporter struct {
	opts Options
}

// Verify interface compliance.
var _ Exporter = (*JSONExporter)(nil)

// FormatName returns the stable format identifier.
func (e *JSONExporter) FormatName() string { return FormatJSON }

type jsonMessage struct {
	Role       domain.Role       `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []domain.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Image      *domain.Image     `json:"image,omitempty"`
	Timestamp  *string           `json:"timestamp,omitempty"`
}

type jsonDocument struct {
	ID        string        `json:"id,omitempty"`
	Title     string        `json:"title,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	CreatedAt *string       `json:"created_at,omitempty"`
	UpdatedAt *string       `json:"updated_at,omitempty"`
	Messages  []jsonMessage `json:"messages"`
}

// Export renders the conversation as indented JSON.
func (e *JSONExporter) Export(conv *domain.Conversation) (*Artifact, error) {
	doc := jsonDocument{Messages: make([]jsonMessage, 0, len(conv.Messages))}

	if e.opts.IncludeMetadata {
		doc.ID = conv.Metadata.ID
		doc.Title = conv.Metadata.Title
		doc.Tags = conv.Metadata.Tags
		if e.opts.IncludeTimestamps {
			doc.CreatedAt = timestampPtr(conv.Metadata.CreatedAt)
			doc.UpdatedAt = timestampPtr(conv.Metadata.UpdatedAt)
		}
	}

	for _, msg := range conv.Messages {
		jm := jsonMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
			Image:      msg.Image,
		}
		if e.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
			jm.Timestamp = timestampPtr(msg.Timestamp)
		}
		doc.Messages = append(doc.Messages, jm)
	}

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding conversation: %w", err)
	}
	content = append(content, '\n')

	return &Artifact{
		Content:    content,
		FormatName: FormatJSON,
		Filename:   baseFilename(conv) + ".json",
	}, nil
}

// ParseJSON reconstructs a conversation from a JSON export produced with both
// options enabled. Used by import tooling and round-trip tests.
func ParseJSON(data []byte) (*domain.Conversation, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding conversation: %w", err)
	}

	meta := domain.Metadata{ID: doc.ID, Title: doc.Title, Tags: doc.Tags}
	if doc.CreatedAt != nil {
		t, err := time.Parse(timestampLayout, *doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("decoding created_at: %w", err)
		}
		meta.CreatedAt = t
	}
	if doc.UpdatedAt != nil {
		t, err := time.Parse(timestampLayout, *doc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("decoding updated_at: %w", err)
		}
		meta.UpdatedAt = t
	}

	msgs := make([]domain.Message, 0, len(doc.Messages))
	for i, jm := range doc.Messages {
		m := domain.Message{
			Role:       jm.Role,
			Content:    jm.Content,
			ToolCalls:  jm.ToolCalls,
			ToolCallID: jm.ToolCallID,
			Name:       jm.Name,
			Image:      jm.Image,
		}
		if jm.Timestamp != nil {
			t, err := time.Parse(timestampLayout, *jm.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("decoding message %d timestamp: %w", i, err)
			}
			m.Timestamp = t
		}
		msgs = append(msgs, m)
	}

	return domain.NewConversation(meta, msgs)
}

func timestampPtr(t time.Time) *string {
	s := formatTimestamp(t)
	return &s
}
