// Package export transforms stored conversations into deliverable documents.
// Exporters are configured once at construction and are pure functions of
// (conversation, options): the same input always yields byte-identical
// output, which downstream artifact dedup relies on.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calebhart/parley/pkg/domain"
)

// Format names. One stable identifier per exporter variant; used for content
// negotiation and filename extension selection.
const (
	FormatMarkdown    = "markdown"
	FormatJSON        = "json"
	FormatHTML        = "html"
	FormatPDF         = "pdf"
	FormatCodePackage = "codepkg"
)

// ErrUnknownFormat indicates a format name no exporter is registered for.
// This is a configuration error and is surfaced before any export work.
var ErrUnknownFormat = errors.New("unknown export format")

// Options is the shared exporter configuration. Immutable once constructed;
// changing options means constructing a new exporter.
type Options struct {
	IncludeMetadata   bool
	IncludeTimestamps bool
}

// Artifact is the product of an export: document bytes plus the metadata the
// delivery layer needs (content negotiation, download filename).
type Artifact struct {
	Content    []byte
	FormatName string
	Filename   string
}

// Exporter produces a representation of a conversation in one output format
// without mutating the source.
type Exporter interface {
	// Export renders the conversation. An empty conversation yields a
	// minimal valid artifact, not an error.
	Export(conv *domain.Conversation) (*Artifact, error)

	// FormatName returns the exporter's stable format identifier.
	FormatName() string
}

// Formats returns the known format names.
func Formats() []string {
	return []string{FormatMarkdown, FormatJSON, FormatHTML, FormatPDF, FormatCodePackage}
}

// New constructs the exporter for the given format name. Unknown names are
// rejected up front and never silently defaulted.
func New(format string, opts Options) (Exporter, error) {
	switch format {
	case FormatMarkdown:
		return &MarkdownExporter{opts: opts}, nil
	case FormatJSON:
		return &JSONExporter{opts: opts}, nil
	case FormatHTML:
		return &HTMLExporter{opts: opts}, nil
	case FormatPDF:
		return &PDFExporter{opts: opts}, nil
	case FormatCodePackage:
		return &CodePackageExporter{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// timestampLayout is the fixed wire format for exported timestamps.
const timestampLayout = time.RFC3339

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// roleTitle maps a role to its display heading.
func roleTitle(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return "User"
	case domain.RoleAssistant:
		return "Assistant"
	case domain.RoleSystem:
		return "System"
	case domain.RoleTool:
		return "Tool"
	}
	return string(r)
}

// baseFilename derives a filesystem-safe name from the conversation title,
// falling back to the conversation id.
func baseFilename(conv *domain.Conversation) string {
	name := slugify(conv.Metadata.Title)
	if name == "" {
		name = conv.Metadata.ID
	}
	if name == "" {
		name = "conversation"
	}
	return name
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
