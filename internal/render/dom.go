package render

import (
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element creates an element node. attrs are key/value pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text creates a text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Append appends children to parent and returns parent.
func Append(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		parent.AppendChild(c)
	}
	return parent
}

// ParseFragment parses an HTML string into detached nodes.
func ParseFragment(s string) []*html.Node {
	ctx := Element("div")
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return []*html.Node{Text(s)}
	}
	return nodes
}

// ClearChildren removes every child of n.
func ClearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// SetInnerHTML replaces n's children with the parsed fragment.
func SetInnerHTML(n *html.Node, s string) {
	ClearChildren(n)
	Append(n, ParseFragment(s)...)
}

// SetText replaces n's children with a single text node.
func SetText(n *html.Node, s string) {
	ClearChildren(n)
	n.AppendChild(Text(s))
}

// InnerHTML serializes n's children.
func InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// OuterHTML serializes n itself.
func OuterHTML(n *html.Node) string {
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}

// TextContent concatenates all text below n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Attr returns the value of attribute key.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or adds attribute key.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, k := range classes(n) {
		if k == c {
			return true
		}
	}
	return false
}

// AddClass adds class c if missing.
func AddClass(n *html.Node, c string) {
	if HasClass(n, c) {
		return
	}
	SetAttr(n, "class", strings.TrimSpace(strings.Join(append(classes(n), c), " ")))
}

// RemoveClass removes class c.
func RemoveClass(n *html.Node, c string) {
	var keep []string
	for _, k := range classes(n) {
		if k != c {
			keep = append(keep, k)
		}
	}
	if len(keep) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(keep, " "))
}

// SetClass adds or removes class c.
func SetClass(n *html.Node, c string, on bool) {
	if on {
		AddClass(n, c)
	} else {
		RemoveClass(n, c)
	}
}

var (
	selMu    sync.Mutex
	selCache = map[string]cascadia.Selector{}
)

func compile(sel string) cascadia.Selector {
	selMu.Lock()
	defer selMu.Unlock()
	s, ok := selCache[sel]
	if !ok {
		s = cascadia.MustCompile(sel)
		selCache[sel] = s
	}
	return s
}

// QueryAll returns descendants of n matching the CSS selector, excluding n.
func QueryAll(n *html.Node, sel string) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for _, m := range compile(sel).MatchAll(n) {
		if m != n {
			out = append(out, m)
		}
	}
	return out
}

// Query returns the first descendant of n matching sel, or nil.
func Query(n *html.Node, sel string) *html.Node {
	if all := QueryAll(n, sel); len(all) > 0 {
		return all[0]
	}
	return nil
}

// Children returns the element children of n carrying class c. An empty c
// matches every element child.
func Children(n *html.Node, c string) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type != html.ElementNode {
			continue
		}
		if c == "" || HasClass(ch, c) {
			out = append(out, ch)
		}
	}
	return out
}

// Child returns the first element child of n carrying class c, or nil.
func Child(n *html.Node, c string) *html.Node {
	if kids := Children(n, c); len(kids) > 0 {
		return kids[0]
	}
	return nil
}

// NewContainer returns a detached element usable as a render target.
func NewContainer() *html.Node {
	return Element("div", "class", "view-root")
}
