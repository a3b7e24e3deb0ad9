package render

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldState maps normalized heading keys to their collapsed flag. Headings
// without an entry are expanded.
type FoldState map[string]bool

// Collapsed reports the stored flag for key.
func (f FoldState) Collapsed(key string) bool {
	return f != nil && f[key]
}

var folder = cases.Fold()

// HeadingKey normalizes heading text so the same heading matches across
// re-renders regardless of width forms, case and spacing.
func HeadingKey(text string) string {
	s := norm.NFKC.String(text)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func foldLevel(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

type openSection struct {
	level int
	body  *html.Node
}

// FoldSubsections rewrites the direct children of body so every h3-h6
// heading opens a div.subsection holding the content up to the next heading
// of the same or a higher level. state supplies collapsed flags by heading
// key; repeated headings get "#2", "#3"... suffixes.
func FoldSubsections(body *html.Node, state FoldState) {
	if body == nil {
		return
	}
	var kids []*html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		kids = append(kids, c)
	}
	ClearChildren(body)

	seen := map[string]int{}
	var stack []openSection
	target := func() *html.Node {
		if len(stack) == 0 {
			return body
		}
		return stack[len(stack)-1].body
	}

	for _, n := range kids {
		level := foldLevel(n)
		if level == 0 {
			target().AppendChild(n)
			continue
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}

		key := HeadingKey(TextContent(n))
		seen[key]++
		if c := seen[key]; c > 1 {
			key += "#" + strconv.Itoa(c)
		}

		section := Element("div",
			"class", "subsection",
			"data-level", strconv.Itoa(level),
			"data-key", key,
		)
		header := Element("div", "class", "subsection-header")
		Append(header, Append(Element("span", "class", "fold-toggle"), Text("▾")), n)
		sbody := Element("div", "class", "subsection-body")
		Append(section, header, sbody)
		SetClass(section, "collapsed", state.Collapsed(key))

		target().AppendChild(section)
		stack = append(stack, openSection{level: level, body: sbody})
	}
}

// SubsectionKeys returns the data-key of every subsection below n in
// document order.
func SubsectionKeys(n *html.Node) []string {
	var keys []string
	for _, s := range QueryAll(n, "div.subsection") {
		k, _ := Attr(s, "data-key")
		keys = append(keys, k)
	}
	return keys
}

// CaptureFolds reads the collapsed flag of every subsection below n.
func CaptureFolds(n *html.Node) FoldState {
	state := FoldState{}
	for _, s := range QueryAll(n, "div.subsection") {
		if k, ok := Attr(s, "data-key"); ok {
			state[k] = HasClass(s, "collapsed")
		}
	}
	return state
}
