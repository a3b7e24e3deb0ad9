package reconcile

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/stage"
)

// Reconciler patches a rendered lifecycle view in place.
type Reconciler struct {
	Renderer *render.Renderer
}

// New returns a reconciler that renders card content with r.
func New(r *render.Renderer) *Reconciler {
	return &Reconciler{Renderer: r}
}

// cardParts are the child elements of a stage card that get patched.
type cardParts struct {
	card, badge, title, meta, summary, body *html.Node
}

func partsOf(card *html.Node) (cardParts, bool) {
	p := cardParts{
		card:    card,
		badge:   render.Child(card, render.ClassBadge),
		title:   render.Child(card, render.ClassStageTitle),
		meta:    render.Child(card, render.ClassStageMeta),
		summary: render.Child(card, render.ClassSummary),
		body:    render.Child(card, render.ClassStageBody),
	}
	ok := p.badge != nil && p.title != nil && p.meta != nil && p.summary != nil && p.body != nil
	return p, ok
}

type cardPatch struct {
	parts   cardParts
	content render.CardContent
	body    *html.Node
}

type nodePatch struct {
	node   *html.Node
	header *html.Node
	key    string
	dated  bool
	cards  []cardPatch
}

// TryIncrementalUpdate patches container to show markdown and reports
// whether it did. It returns false, leaving the DOM untouched, unless the
// container already holds a lifecycle view with the same number of time
// nodes and the same number of cards in every node.
func (rc *Reconciler) TryIncrementalUpdate(markdown string, container *html.Node) bool {
	if rc.Renderer == nil {
		return false
	}
	view, domNodes, ok := lifecycle(container)
	if !ok {
		return false
	}
	if strings.TrimSpace(markdown) == "" {
		return false
	}
	nodes := rc.Renderer.Timeline(markdown)
	if len(nodes) == 0 || len(nodes) != len(domNodes) {
		return false
	}
	titleEl := render.Child(view, "report-title")
	if titleEl == nil {
		return false
	}

	state := Capture(container)

	// everything is computed before the first mutation
	patches := make([]nodePatch, len(nodes))
	for i, n := range nodes {
		domCards := cards(domNodes[i])
		if len(domCards) != len(n.Stages) {
			return false
		}
		header := render.Child(domNodes[i], render.ClassNodeHeader)
		if header == nil {
			return false
		}
		np := nodePatch{
			node:   domNodes[i],
			header: header,
			key:    n.Key,
			dated:  n.Dated,
			cards:  make([]cardPatch, len(n.Stages)),
		}
		for j, ts := range n.Stages {
			parts, ok := partsOf(domCards[j])
			if !ok {
				return false
			}
			content := rc.Renderer.Card(ts)
			folds := state.ByHeading[StageKey{Node: i, Stage: j}]
			np.cards[j] = cardPatch{
				parts:   parts,
				content: content,
				body:    rc.Renderer.BodyNode(render.ClassStageBody, content.Markdown, folds),
			}
		}
		patches[i] = np
	}
	newTitle := stage.ExtractTitle(markdown)

	render.SetText(titleEl, newTitle)
	for i, np := range patches {
		render.SetAttr(np.node, "data-key", np.key)
		render.SetClass(np.node, "undated", !np.dated)
		replace(np.header, render.NodeHeader(nodes[i]))
		for _, cp := range np.cards {
			applyCard(cp)
		}
	}
	Restore(container, state)
	return true
}

func applyCard(cp cardPatch) {
	p, c := cp.parts, cp.content
	render.SetAttr(p.card, "data-stage-num", c.StageNum)
	render.SetAttr(p.card, "data-line", strconv.Itoa(c.Line))
	render.SetText(p.badge, c.Badge)
	render.SetText(p.title, c.Title)
	replace(p.meta, c.Meta)
	render.SetText(p.summary, c.Summary)
	replace(p.body, cp.body)
}

func replace(old, repl *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
}
