package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
)

// MarkdownWidth is the word-wrap width for terminal previews.
const MarkdownWidth = 100

// RenderMarkdownString renders md for the terminal.
func RenderMarkdownString(md string, width int) (string, error) {
	if width <= 0 {
		width = MarkdownWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return renderer.Render(md)
}

// RenderMarkdown prints md to stdout, falling back to the raw text when
// rendering fails.
func RenderMarkdown(md string) {
	out, err := RenderMarkdownString(md, MarkdownWidth)
	if err != nil {
		fmt.Fprintln(os.Stdout, md)
		return
	}
	fmt.Fprint(os.Stdout, out)
}
