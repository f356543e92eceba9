package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/calebhart/parley/pkg/domain"
)

// CodePackageExporter extracts fenced code blocks from assistant and tool
// messages into a zip archive, one file per snippet grouped by detected
// language. Prose messages are ignored entirely.
type CodePackageExporter struct {
	opts Options
}

// Verify interface compliance.
var _ Exporter = (*CodePackageExporter)(nil)

// FormatName returns the stable format identifier.
func (e *CodePackageExporter) FormatName() string { return FormatCodePackage }

// zipEpoch pins archive entry timestamps for deterministic output. The zip
// format cannot represent times before 1980.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Export builds the snippet archive.
func (e *CodePackageExporter) Export(conv *domain.Conversation) (*Artifact, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if e.opts.IncludeMetadata {
		if err := writeZipFile(zw, "MANIFEST.txt", e.manifest(conv)); err != nil {
			return nil, err
		}
	}

	n := 0
	for _, msg := range conv.Messages {
		if msg.Role != domain.RoleAssistant && msg.Role != domain.RoleTool {
			continue
		}
		for _, block := range parseBlocks(msg.Content) {
			if !block.Code || strings.TrimSpace(block.Text) == "" {
				continue
			}
			n++
			name := fmt.Sprintf("%s/snippet_%03d.%s", langDir(block.Lang), n, extensionForLang(block.Lang))
			if err := writeZipFile(zw, name, block.Text+"\n"); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}

	return &Artifact{
		Content:    buf.Bytes(),
		FormatName: FormatCodePackage,
		Filename:   baseFilename(conv) + ".zip",
	}, nil
}

func (e *CodePackageExporter) manifest(conv *domain.Conversation) string {
	var b strings.Builder
	title := conv.Metadata.Title
	if title == "" {
		title = "Conversation"
	}
	fmt.Fprintf(&b, "Title: %s\n", title)
	if conv.Metadata.ID != "" {
		fmt.Fprintf(&b, "ID: %s\n", conv.Metadata.ID)
	}
	if len(conv.Metadata.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(conv.Metadata.Tags, ", "))
	}
	if e.opts.IncludeTimestamps {
		fmt.Fprintf(&b, "Created: %s\n", formatTimestamp(conv.Metadata.CreatedAt))
		fmt.Fprintf(&b, "Updated: %s\n", formatTimestamp(conv.Metadata.UpdatedAt))
	}
	return b.String()
}

func writeZipFile(zw *zip.Writer, name, content string) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	})
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", name, err)
	}
	return nil
}
