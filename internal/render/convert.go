package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmrenderer "github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Converter turns a markdown fragment into HTML.
type Converter interface {
	Render(markdown string) (string, error)
}

// HighlightFunc renders a code block body. lang is the raw fence info
// word and may be empty. On error the block is emitted as escaped text.
type HighlightFunc func(code, lang string) (string, error)

// GoldmarkConverter is the default Converter: GitHub-flavored markdown with
// line breaks kept as <br>, code blocks passed through a HighlightFunc and
// the result sanitized.
type GoldmarkConverter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewGoldmarkConverter builds a converter. A nil highlight leaves code
// escaped but otherwise untouched.
func NewGoldmarkConverter(highlight HighlightFunc) *GoldmarkConverter {
	if highlight == nil {
		highlight = func(code, _ string) (string, error) { return escape(code), nil }
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
			gmrenderer.WithNodeRenderers(util.Prioritized(&codeBlockRenderer{highlight: highlight}, 100)),
		),
	)
	return &GoldmarkConverter{md: md, policy: sanitizePolicy()}
}

func sanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("type", "checked", "disabled").OnElements("input")
	p.AllowElements("input", "span")
	return p
}

// Render converts markdown to sanitized HTML.
func (c *GoldmarkConverter) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return c.policy.Sanitize(buf.String()), nil
}

// codeBlockRenderer replaces goldmark's fenced and indented code output so
// the highlight hook decides the inner markup.
type codeBlockRenderer struct {
	highlight HighlightFunc
}

func (r *codeBlockRenderer) RegisterFuncs(reg gmrenderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.render)
	reg.Register(ast.KindCodeBlock, r.render)
}

func (r *codeBlockRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	var lang string
	if fenced, ok := node.(*ast.FencedCodeBlock); ok {
		if l := fenced.Language(source); l != nil {
			lang = string(l)
		}
	}
	var code bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	_, _ = w.WriteString("<pre><code")
	if lang != "" {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML([]byte(lang)))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	out, err := r.highlight(code.String(), lang)
	if err != nil {
		out = escape(code.String())
	}
	_, _ = w.WriteString(out)
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

func escape(s string) string {
	return string(util.EscapeHTML([]byte(s)))
}
