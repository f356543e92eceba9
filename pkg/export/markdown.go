package export

import (
	"fmt"
	"strings"

	"github.com/calebhart/parley/pkg/domain"
)

// MarkdownExporter renders a conversation as a Markdown document: one section
// per message with a role header, message content verbatim. Code fences
// inside message content are preserved as-is, never re-escaped.
type MarkdownExporter struct {
	opts Options
}

// Verify interface compliance.
var _ Exporter = (*MarkdownExporter)(nil)

// FormatName returns the stable format identifier.
func (e *MarkdownExporter) FormatName() string { return FormatMarkdown }

// Export renders the conversation to Markdown text.
func (e *MarkdownExporter) Export(conv *domain.Conversation) (*Artifact, error) {
	var b strings.Builder

	if e.opts.IncludeMetadata {
		title := conv.Metadata.Title
		if title == "" {
			title = "Conversation"
		}
		fmt.Fprintf(&b, "# %s\n\n", title)
		if conv.Metadata.ID != "" {
			fmt.Fprintf(&b, "- ID: %s\n", conv.Metadata.ID)
		}
		if len(conv.Metadata.Tags) > 0 {
			fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(conv.Metadata.Tags, ", "))
		}
		if e.opts.IncludeTimestamps {
			fmt.Fprintf(&b, "- Created: %s\n", formatTimestamp(conv.Metadata.CreatedAt))
			fmt.Fprintf(&b, "- Updated: %s\n", formatTimestamp(conv.Metadata.UpdatedAt))
		}
		b.WriteString("\n---\n\n")
	}

	for i, msg := range conv.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		if e.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&b, "## %s (%s)\n\n", roleTitle(msg.Role), formatTimestamp(msg.Timestamp))
		} else {
			fmt.Fprintf(&b, "## %s\n\n", roleTitle(msg.Role))
		}

		if msg.Role == domain.RoleTool && msg.Name != "" {
			fmt.Fprintf(&b, "*Result of `%s` (%s)*\n\n", msg.Name, msg.ToolCallID)
		}

		if msg.Content != "" {
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}

		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(&b, "\n**Tool call `%s`** (%s)\n\n", tc.Name, tc.ID)
			b.WriteString("```json\n")
			b.WriteString(tc.Arguments)
			b.WriteString("\n```\n")
		}
	}

	return &Artifact{
		Content:    []byte(b.String()),
		FormatName: FormatMarkdown,
		Filename:   baseFilename(conv) + ".md",
	}, nil
}
