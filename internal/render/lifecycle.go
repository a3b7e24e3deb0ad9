package render

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kokistudios/vulnlife/internal/timeline"
)

// Lifecycle view class names shared with the reconciler.
const (
	ClassLifecycle  = "lifecycle-view"
	ClassTimeline   = "timeline"
	ClassTimeNode   = "time-node"
	ClassNodeHeader = "time-node-header"
	ClassNodeStages = "time-node-stages"
	ClassStageCard  = "stage-card"
	ClassBadge      = "stage-badge"
	ClassStageTitle = "stage-title"
	ClassStageMeta  = "stage-meta"
	ClassSummary    = "stage-summary"
	ClassStageBody  = "stage-body"
	ClassCollapsed  = "collapsed"
)

// CardContent is everything a stage card displays, computed ahead of any DOM
// mutation.
type CardContent struct {
	Badge    string
	Title    string
	StageNum string
	Line     int
	Meta     *html.Node
	Summary  string
	Markdown string
}

// Card computes the content of one stage card.
func (r *Renderer) Card(ts timeline.TimedStage) CardContent {
	return CardContent{
		Badge:    badgeText(ts.Stage),
		Title:    ts.Stage.Title,
		StageNum: stageNumAttr(ts.Stage),
		Line:     ts.Stage.StartLine,
		Meta:     r.MetaList(ts.Stage.Metadata),
		Summary:  Summary(ts),
		Markdown: ts.Stage.Body(),
	}
}

// Summary joins a stage's time entries into one line.
func Summary(ts timeline.TimedStage) string {
	if len(ts.TimeInfo) == 0 {
		return timeline.UndatedLabel
	}
	parts := make([]string, 0, len(ts.TimeInfo))
	for _, ti := range ts.TimeInfo {
		parts = append(parts, ti.Label+": "+ti.Value)
	}
	return strings.Join(parts, " · ")
}

// NodeHeader renders the date label and stage count of a time node.
func NodeHeader(n timeline.Node) *html.Node {
	header := Element("div", "class", ClassNodeHeader)
	Append(header,
		Append(Element("span", "class", "fold-toggle"), Text("▾")),
		Append(Element("span", "class", "time-node-date"), Text(n.Label())),
		Append(Element("span", "class", "time-node-count"), Text(stageCount(len(n.Stages)))),
	)
	return header
}

func stageCount(n int) string {
	if n == 1 {
		return "1 stage"
	}
	return strconv.Itoa(n) + " stages"
}

// RenderLifecycle renders every stage on the timeline, grouped by time node.
func (r *Renderer) RenderLifecycle(markdown string, container *html.Node) {
	stages, ok := r.begin(ViewLifecycle, markdown, container)
	if !ok {
		return
	}
	nodes := timeline.NewClusterer(r.Vocab, r.Policy).Group(stages)

	view := Element("div", "class", ClassLifecycle)
	tl := Element("div", "class", ClassTimeline)
	for i, n := range nodes {
		node := Element("div",
			"class", ClassTimeNode,
			"data-node-index", strconv.Itoa(i),
			"data-key", n.Key,
		)
		SetClass(node, "undated", !n.Dated)
		list := Element("div", "class", ClassNodeStages)
		for j, ts := range n.Stages {
			Append(list, r.stageCard(r.Card(ts), j, nil))
		}
		Append(node, NodeHeader(n), list)
		Append(tl, node)
	}
	Append(view, titleNode(markdown), tl)
	Append(container, view)
}

func (r *Renderer) stageCard(c CardContent, index int, folds FoldState) *html.Node {
	card := Element("div",
		"class", ClassStageCard,
		"data-stage-index", strconv.Itoa(index),
		"data-stage-num", c.StageNum,
		"data-line", strconv.Itoa(c.Line),
	)
	Append(card,
		Append(Element("span", "class", ClassBadge), Text(c.Badge)),
		Append(Element("h2", "class", ClassStageTitle), Text(c.Title)),
		c.Meta,
		Append(Element("p", "class", ClassSummary), Text(c.Summary)),
		r.BodyNode(ClassStageBody, c.Markdown, folds),
	)
	return card
}
