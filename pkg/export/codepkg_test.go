package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/calebhart/parley/pkg/domain"
)

func codeConversation(t *testing.T) *domain.Conversation {
	t.Helper()
	ts := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "```go\npackage ignored\n```", Timestamp: ts},
		{
			Role:      domain.RoleAssistant,
			Content:   "Here you go:\n\n```go\npackage main\n\nfunc main() {}\n```\n\nAnd a helper script:\n\n```bash\necho hi\n```",
			Timestamp: ts,
		},
		{Role: domain.RoleAssistant, Content: "Just prose, no code.", Timestamp: ts},
	}
	conv, err := domain.NewConversation(domain.Metadata{ID: "c-code", Title: "Snippets"}, msgs)
	if err != nil {
		t.Fatalf("NewConversation: %v", err)
	}
	return conv
}

func readArchive(t *testing.T, content []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}
	return files
}

func TestCodePackageExtractsAssistantAndToolCode(t *testing.T) {
	conv := codeConversation(t)
	e, err := New(FormatCodePackage, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	files := readArchive(t, a.Content)
	if len(files) != 2 {
		t.Fatalf("archive has %d files, want 2: %v", len(files), keys(files))
	}

	goFile, ok := files["go/snippet_001.go"]
	if !ok {
		t.Fatalf("missing go snippet: %v", keys(files))
	}
	if !strings.Contains(goFile, "func main() {}") {
		t.Errorf("go snippet content = %q", goFile)
	}

	shFile, ok := files["sh/snippet_002.sh"]
	if !ok {
		t.Fatalf("missing shell snippet: %v", keys(files))
	}
	if !strings.Contains(shFile, "echo hi") {
		t.Errorf("shell snippet content = %q", shFile)
	}

	// The user message's code block must be ignored.
	for name, content := range files {
		if strings.Contains(content, "package ignored") {
			t.Errorf("user code block leaked into %s", name)
		}
	}
}

func TestCodePackageManifestOption(t *testing.T) {
	conv := codeConversation(t)

	e, err := New(FormatCodePackage, Options{IncludeMetadata: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	files := readArchive(t, a.Content)
	manifest, ok := files["MANIFEST.txt"]
	if !ok {
		t.Fatal("missing MANIFEST.txt with IncludeMetadata=true")
	}
	if !strings.Contains(manifest, "Snippets") {
		t.Errorf("manifest = %q, want title", manifest)
	}

	e, err = New(FormatCodePackage, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err = e.Export(conv)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, ok := readArchive(t, a.Content)["MANIFEST.txt"]; ok {
		t.Error("MANIFEST.txt present despite IncludeMetadata=false")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
