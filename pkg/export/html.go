package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/calebhart/parley/pkg/domain"
)

// HTMLExporter renders a conversation as a standalone HTML document. Message
// content is rendered as Markdown with raw HTML escaped (goldmark's default,
// unsafe rendering stays off); tool output and tool call arguments are
// wrapped in pre/code.
type HTMLExporter struct {
	opts Options
}

// Verify interface compliance.
var _ Exporter = (*HTMLExporter)(nil)

// FormatName returns the stable format identifier.
func (e *HTMLExporter) FormatName() string { return FormatHTML }

var htmlShell = template.Must(template.New("conversation").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
header.meta { border-bottom: 1px solid #ddd; margin-bottom: 1.5rem; padding-bottom: 1rem; }
header.meta dl { display: grid; grid-template-columns: max-content 1fr; gap: 0.25rem 1rem; font-size: 0.875rem; color: #555; }
section.message { margin-bottom: 1.5rem; }
section.message > h2 { font-size: 1rem; margin-bottom: 0.25rem; }
section.message time { font-size: 0.75rem; color: #888; font-weight: normal; margin-left: 0.5rem; }
section.message-user > h2 { color: #1d4ed8; }
section.message-assistant > h2 { color: #15803d; }
section.message-system > h2 { color: #6b7280; }
section.message-tool > h2 { color: #b45309; }
pre { background: #f6f8fa; padding: 0.75rem; border-radius: 6px; overflow-x: auto; }
code { font-family: ui-monospace, monospace; font-size: 0.875rem; }
</style>
</head>
<body>
{{- if .ShowMeta}}
<header class="meta">
<h1>{{.Title}}</h1>
<dl>
{{- if .ID}}<dt>ID</dt><dd>{{.ID}}</dd>{{end}}
{{- if .Tags}}<dt>Tags</dt><dd>{{.Tags}}</dd>{{end}}
{{- if .Created}}<dt>Created</dt><dd>{{.Created}}</dd>{{end}}
{{- if .Updated}}<dt>Updated</dt><dd>{{.Updated}}</dd>{{end}}
</dl>
</header>
{{- end}}
{{- range .Messages}}
<section class="message message-{{.RoleClass}}">
<h2>{{.RoleTitle}}{{if .Timestamp}}<time>{{.Timestamp}}</time>{{end}}</h2>
{{.Body}}
{{- range .ToolCalls}}
<p>Tool call <code>{{.Name}}</code> ({{.ID}})</p>
<pre><code>{{.Arguments}}</code></pre>
{{- end}}
</section>
{{- end}}
</body>
</html>
`))

type htmlMessage struct {
	RoleClass string
	RoleTitle string
	Timestamp string
	Body      template.HTML
	ToolCalls []domain.ToolCall
}

type htmlDocument struct {
	Title    string
	ShowMeta bool
	ID       string
	Tags     string
	Created  string
	Updated  string
	Messages []htmlMessage
}

// Export renders the conversation to an HTML document.
func (e *HTMLExporter) Export(conv *domain.Conversation) (*Artifact, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	doc := htmlDocument{Title: conv.Metadata.Title}
	if doc.Title == "" {
		doc.Title = "Conversation"
	}
	if e.opts.IncludeMetadata {
		doc.ShowMeta = true
		doc.ID = conv.Metadata.ID
		doc.Tags = joinTags(conv.Metadata.Tags)
		if e.opts.IncludeTimestamps {
			doc.Created = formatTimestamp(conv.Metadata.CreatedAt)
			doc.Updated = formatTimestamp(conv.Metadata.UpdatedAt)
		}
	}

	for _, msg := range conv.Messages {
		hm := htmlMessage{
			RoleClass: string(msg.Role),
			RoleTitle: roleTitle(msg.Role),
			ToolCalls: msg.ToolCalls,
		}
		if e.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
			hm.Timestamp = formatTimestamp(msg.Timestamp)
		}

		body, err := renderBody(md, msg)
		if err != nil {
			return nil, err
		}
		hm.Body = body
		doc.Messages = append(doc.Messages, hm)
	}

	var buf bytes.Buffer
	if err := htmlShell.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("rendering document: %w", err)
	}

	return &Artifact{
		Content:    buf.Bytes(),
		FormatName: FormatHTML,
		Filename:   baseFilename(conv) + ".html",
	}, nil
}

// renderBody converts a message body to HTML. Tool output is literal text,
// not Markdown, so it gets the fixed pre/code wrapping; everything else goes
// through goldmark.
func renderBody(md goldmark.Markdown, msg domain.Message) (template.HTML, error) {
	if msg.Content == "" {
		return "", nil
	}
	if msg.Role == domain.RoleTool {
		var buf bytes.Buffer
		buf.WriteString("<pre><code>")
		template.HTMLEscape(&buf, []byte(msg.Content))
		buf.WriteString("</code></pre>")
		return template.HTML(buf.String()), nil
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(msg.Content), &buf); err != nil {
		return "", fmt.Errorf("rendering message content: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
