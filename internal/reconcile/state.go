package reconcile

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/kokistudios/vulnlife/internal/render"
)

// ScrollAttr stores the client's scroll offset on the container element.
const ScrollAttr = "data-scroll-top"

// StageKey addresses a stage card by time-node and card position.
type StageKey struct {
	Node  int
	Stage int
}

// SubsectionKey addresses a subsection by position inside its stage card.
type SubsectionKey struct {
	Node       int
	Stage      int
	Subsection int
}

// ViewState is the UI state of a rendered lifecycle view, decoupled from the
// DOM it was read from. Boolean values are collapsed flags.
type ViewState struct {
	ScrollTop   int
	Nodes       map[int]bool
	Stages      map[StageKey]bool
	Subsections map[SubsectionKey]bool
	// ByHeading holds each card's subsection flags keyed by normalized
	// heading text, so they survive content shifting around them.
	ByHeading map[StageKey]render.FoldState
}

func newViewState() ViewState {
	return ViewState{
		Nodes:       map[int]bool{},
		Stages:      map[StageKey]bool{},
		Subsections: map[SubsectionKey]bool{},
		ByHeading:   map[StageKey]render.FoldState{},
	}
}

// lifecycle returns the time-node elements of a rendered lifecycle view, or
// ok=false when the container does not hold one.
func lifecycle(container *html.Node) (view *html.Node, nodes []*html.Node, ok bool) {
	if container == nil {
		return nil, nil, false
	}
	view = render.Child(container, render.ClassLifecycle)
	tl := render.Child(view, render.ClassTimeline)
	if view == nil || tl == nil {
		return nil, nil, false
	}
	return view, render.Children(tl, render.ClassTimeNode), true
}

func cards(node *html.Node) []*html.Node {
	return render.Children(render.Child(node, render.ClassNodeStages), render.ClassStageCard)
}

func subsections(card *html.Node) []*html.Node {
	return render.QueryAll(render.Child(card, render.ClassStageBody), "div.subsection")
}

// Capture reads the collapse flags and scroll offset of a lifecycle view.
// A container without a lifecycle view yields an empty state.
func Capture(container *html.Node) ViewState {
	state := newViewState()
	state.ScrollTop = SaveScroll(container)
	_, nodes, ok := lifecycle(container)
	if !ok {
		return state
	}
	for i, node := range nodes {
		state.Nodes[i] = render.HasClass(node, render.ClassCollapsed)
		for j, card := range cards(node) {
			sk := StageKey{Node: i, Stage: j}
			state.Stages[sk] = render.HasClass(card, render.ClassCollapsed)
			state.ByHeading[sk] = render.CaptureFolds(render.Child(card, render.ClassStageBody))
			for k, sub := range subsections(card) {
				state.Subsections[SubsectionKey{i, j, k}] = render.HasClass(sub, render.ClassCollapsed)
			}
		}
	}
	return state
}

// Restore applies state to a lifecycle view. Subsections are matched by
// heading key when the card has heading flags, by position otherwise.
// Entries that no longer exist are ignored.
func Restore(container *html.Node, state ViewState) {
	RestoreScroll(container, state.ScrollTop)
	_, nodes, ok := lifecycle(container)
	if !ok {
		return
	}
	for i, node := range nodes {
		if c, ok := state.Nodes[i]; ok {
			render.SetClass(node, render.ClassCollapsed, c)
		}
		for j, card := range cards(node) {
			sk := StageKey{Node: i, Stage: j}
			if c, ok := state.Stages[sk]; ok {
				render.SetClass(card, render.ClassCollapsed, c)
			}
			folds, byKey := state.ByHeading[sk]
			for k, sub := range subsections(card) {
				if byKey {
					key, _ := render.Attr(sub, "data-key")
					render.SetClass(sub, render.ClassCollapsed, folds.Collapsed(key))
					continue
				}
				if c, ok := state.Subsections[SubsectionKey{i, j, k}]; ok {
					render.SetClass(sub, render.ClassCollapsed, c)
				}
			}
		}
	}
}

// SaveScroll returns the scroll offset recorded on container.
func SaveScroll(container *html.Node) int {
	if container == nil {
		return 0
	}
	v, _ := render.Attr(container, ScrollAttr)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// RestoreScroll records a scroll offset on container.
func RestoreScroll(container *html.Node, top int) {
	if container == nil {
		return
	}
	if top <= 0 {
		render.RemoveAttr(container, ScrollAttr)
		return
	}
	render.SetAttr(container, ScrollAttr, strconv.Itoa(top))
}

// Target addresses one collapsible element of the lifecycle view. Stage < 0
// targets the time node itself; an empty Subsection targets the card.
type Target struct {
	Node       int    `json:"node"`
	Stage      int    `json:"stage"`
	Subsection string `json:"subsection,omitempty"`
}

// SetCollapsed toggles one element and reports whether it was found.
func SetCollapsed(container *html.Node, t Target, collapsed bool) bool {
	_, nodes, ok := lifecycle(container)
	if !ok || t.Node < 0 || t.Node >= len(nodes) {
		return false
	}
	node := nodes[t.Node]
	if t.Stage < 0 {
		render.SetClass(node, render.ClassCollapsed, collapsed)
		return true
	}
	cs := cards(node)
	if t.Stage >= len(cs) {
		return false
	}
	if t.Subsection == "" {
		render.SetClass(cs[t.Stage], render.ClassCollapsed, collapsed)
		return true
	}
	for _, sub := range subsections(cs[t.Stage]) {
		if key, _ := render.Attr(sub, "data-key"); key == t.Subsection {
			render.SetClass(sub, render.ClassCollapsed, collapsed)
			return true
		}
	}
	return false
}
