package export

import "strings"

// contentBlock is a prose or fenced-code segment of a message body. The HTML,
// PDF and code-package exporters all render from this shared intermediate
// form so their output stays consistent.
type contentBlock struct {
	Code bool
	Lang string
	Text string
}

// parseBlocks splits message content on backtick fences. Fence markers of
// three or more backticks open a code block; the block closes on a fence at
// least as long. Unclosed fences run to the end of the content.
func parseBlocks(content string) []contentBlock {
	var blocks []contentBlock
	var prose []string
	var code []string
	var fenceLen int
	var lang string
	inCode := false

	flushProse := func() {
		if len(prose) > 0 {
			text := strings.Join(prose, "\n")
			if strings.TrimSpace(text) != "" {
				blocks = append(blocks, contentBlock{Text: text})
			}
			prose = prose[:0]
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inCode {
			if n := fenceLength(trimmed); n >= 3 {
				flushProse()
				inCode = true
				fenceLen = n
				lang = strings.TrimSpace(trimmed[n:])
				continue
			}
			prose = append(prose, line)
			continue
		}
		if n := fenceLength(trimmed); n >= fenceLen && strings.TrimSpace(trimmed[n:]) == "" {
			blocks = append(blocks, contentBlock{Code: true, Lang: lang, Text: strings.Join(code, "\n")})
			code = code[:0]
			inCode = false
			continue
		}
		code = append(code, line)
	}

	if inCode {
		blocks = append(blocks, contentBlock{Code: true, Lang: lang, Text: strings.Join(code, "\n")})
	} else {
		flushProse()
	}
	return blocks
}

// fenceLength returns the number of leading backticks.
func fenceLength(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}

// extensionForLang maps a fence language hint to a file extension for the
// code-package exporter.
func extensionForLang(lang string) string {
	switch strings.ToLower(lang) {
	case "go", "golang":
		return "go"
	case "python", "py":
		return "py"
	case "javascript", "js":
		return "js"
	case "typescript", "ts":
		return "ts"
	case "bash", "sh", "shell", "zsh":
		return "sh"
	case "ruby", "rb":
		return "rb"
	case "rust", "rs":
		return "rs"
	case "java":
		return "java"
	case "c":
		return "c"
	case "cpp", "c++":
		return "cpp"
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "html":
		return "html"
	case "css":
		return "css"
	case "sql":
		return "sql"
	default:
		return "txt"
	}
}

// langDir groups snippets in the archive by detected language.
func langDir(lang string) string {
	if lang == "" {
		return "text"
	}
	ext := extensionForLang(lang)
	if ext == "txt" {
		return "text"
	}
	return ext
}
