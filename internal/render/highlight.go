package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter turns source code into highlighted HTML (no surrounding <pre>).
type Highlighter interface {
	Highlight(code, lang string) (string, error)
	AutoDetect(code string) (string, error)
}

// ChromaHighlighter is the default Highlighter. Output uses CSS classes so the
// page stylesheet controls colors.
type ChromaHighlighter struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// NewChromaHighlighter returns a class-based chroma highlighter. An unknown
// style name falls back to chroma's default style.
func NewChromaHighlighter(style string) *ChromaHighlighter {
	return &ChromaHighlighter{
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
		style: styles.Get(style),
	}
}

// Highlight highlights code with the lexer registered for lang. Unknown
// languages are an error so the caller can degrade.
func (h *ChromaHighlighter) Highlight(code, lang string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", fmt.Errorf("no lexer for %q", lang)
	}
	return h.format(lexer, code)
}

// AutoDetect guesses the language from the code itself.
func (h *ChromaHighlighter) AutoDetect(code string) (string, error) {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return h.format(lexer, code)
}

func (h *ChromaHighlighter) format(lexer chroma.Lexer, code string) (string, error) {
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, it); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return buf.String(), nil
}

// CSS returns the stylesheet matching the highlighter's classes.
func (h *ChromaHighlighter) CSS() (string, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var languageAliases = map[string]string{
	"sh":            "bash",
	"shell":         "bash",
	"zsh":           "bash",
	"console":       "bash",
	"shell-session": "bash",
	"shellsession":  "bash",
	"terminal":      "bash",
	"js":            "javascript",
	"jsx":           "javascript",
	"mjs":           "javascript",
	"ts":            "typescript",
	"tsx":           "typescript",
	"py":            "python",
	"py3":           "python",
	"python3":       "python",
	"yml":           "yaml",
	"golang":        "go",
	"rb":            "ruby",
	"rs":            "rust",
	"ps":            "powershell",
	"ps1":           "powershell",
	"c++":           "cpp",
	"cc":            "cpp",
	"h":             "c",
	"kt":            "kotlin",
	"md":            "markdown",
	"dockerfile":    "docker",
	"http-request":  "http",
	"asm":           "nasm",
	"text":          "plaintext",
	"txt":           "plaintext",
	"plain":         "plaintext",
}

// CanonicalLanguage maps a fence info string to the grammar name handed to
// the highlighter. Only the first word of the info string counts.
func CanonicalLanguage(info string) string {
	fields := strings.Fields(strings.ToLower(info))
	if len(fields) == 0 {
		return ""
	}
	lang := strings.Trim(fields[0], "{}.")
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}
