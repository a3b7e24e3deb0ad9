package render

import (
	"strings"

	"golang.org/x/net/html"
)

// HighlightClass is put on every pre > code so one stylesheet covers all blocks.
const HighlightClass = "hljs"

// DecorateCodeBlocks adds the highlight class to each code block below n and
// wraps its <pre> in div.code-block with a language label and copy button.
func DecorateCodeBlocks(n *html.Node) {
	for _, code := range QueryAll(n, "pre > code") {
		pre := code.Parent
		AddClass(code, HighlightClass)
		if HasClass(pre.Parent, "code-block") {
			continue
		}

		lang := "text"
		for _, c := range classes(code) {
			if strings.HasPrefix(c, "language-") {
				lang = strings.TrimPrefix(c, "language-")
				break
			}
		}

		wrapper := Element("div", "class", "code-block", "data-lang", lang)
		header := Element("div", "class", "code-header")
		Append(header,
			Append(Element("span", "class", "code-lang"), Text(lang)),
			Append(Element("button", "class", "copy-btn", "type", "button", "title", "Copy code"), Text("Copy")),
		)
		if parent := pre.Parent; parent != nil {
			parent.InsertBefore(wrapper, pre)
			parent.RemoveChild(pre)
		}
		Append(wrapper, header, pre)
	}
}

// MarkdownNodes converts markdown and returns the decorated HTML as detached
// nodes. Conversion failures fall back to an escaped <pre> of the source.
func (r *Renderer) MarkdownNodes(md string) []*html.Node {
	out, err := r.Converter.Render(md)
	if err != nil {
		r.warn("markdown conversion failed", "err", err)
		pre := Element("pre", "class", "raw-markdown")
		return []*html.Node{Append(pre, Text(md))}
	}
	holder := Element("div")
	Append(holder, ParseFragment(out)...)
	DecorateCodeBlocks(holder)
	var nodes []*html.Node
	for c := holder.FirstChild; c != nil; {
		next := c.NextSibling
		holder.RemoveChild(c)
		nodes = append(nodes, c)
		c = next
	}
	return nodes
}

// BodyNode renders markdown into a div with the given class and folds its
// subsections.
func (r *Renderer) BodyNode(class, md string, state FoldState) *html.Node {
	body := Element("div", "class", class)
	Append(body, r.MarkdownNodes(md)...)
	FoldSubsections(body, state)
	return body
}
