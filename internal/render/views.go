package render

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/stage"
)

// analysisStages feed the root-cause analysis view.
var analysisStages = map[int]bool{
	stage.Introduction: true,
	stage.Discovery:    true,
	stage.Patch:        true,
}

var h3Line = regexp.MustCompile(`^###\s+(.+)$`)

// Section is a "###" block of a stage.
type Section struct {
	Title   string
	Content string
}

// SplitSections splits stage content on level-3 headings. Text before the
// first heading is returned as lead.
func SplitSections(content string) (lead string, sections []Section) {
	var leadLines []string
	var cur *Section
	var body []string
	flush := func() {
		if cur != nil {
			cur.Content = strings.TrimSpace(strings.Join(body, "\n"))
			sections = append(sections, *cur)
		}
	}
	for _, line := range strings.Split(content, "\n") {
		if m := h3Line.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			flush()
			cur = &Section{Title: strings.TrimSpace(m[1])}
			body = nil
			continue
		}
		if cur == nil {
			leadLines = append(leadLines, line)
			continue
		}
		body = append(body, line)
	}
	flush()
	return strings.TrimSpace(strings.Join(leadLines, "\n")), sections
}

func filterStages(stages []stage.Stage, keep func(stage.Stage) bool) []stage.Stage {
	var out []stage.Stage
	for _, s := range stages {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func missing(name string) *html.Node {
	return Append(Element("div", "class", "empty-stage"), Text("No \""+name+"\" section in this report yet."))
}

// RenderExploitability renders the exploitation stage with one card per
// "###" section.
func (r *Renderer) RenderExploitability(markdown string, container *html.Node) {
	stages, ok := r.begin(ViewExploitability, markdown, container)
	if !ok {
		return
	}
	view := Element("div", "class", "exploitability-view")
	Append(view, titleNode(markdown))

	matched := filterStages(stages, func(s stage.Stage) bool { return s.Is(stage.Exploitation) })
	if len(matched) == 0 {
		Append(view, missing(stage.Name(stage.Exploitation)))
	}
	for _, s := range matched {
		sec := Element("section", "class", "exploit-stage", "data-line", strconv.Itoa(s.StartLine))
		Append(sec,
			Append(Element("h2", "class", ClassStageTitle), Text(s.Title)),
			r.MetaList(s.Metadata),
		)
		lead, sections := SplitSections(s.Body())
		if lead != "" {
			Append(sec, r.BodyNode("exploit-overview", lead, nil))
		}
		grid := Element("div", "class", "exploit-grid")
		for i, part := range sections {
			card := Element("div", "class", "exploit-card", "data-section-index", strconv.Itoa(i))
			Append(card,
				Append(Element("h3", "class", "exploit-title"), Text(part.Title)),
				r.BodyNode("exploit-body", part.Content, nil),
			)
			Append(grid, card)
		}
		Append(sec, grid)
		Append(view, sec)
	}
	Append(container, view)
}

// RenderIntelligence renders the threat intelligence stage as written.
func (r *Renderer) RenderIntelligence(markdown string, container *html.Node) {
	stages, ok := r.begin(ViewIntelligence, markdown, container)
	if !ok {
		return
	}
	view := Element("div", "class", "intelligence-view")
	Append(view, titleNode(markdown))
	matched := filterStages(stages, func(s stage.Stage) bool { return s.Is(stage.Intelligence) })
	if len(matched) == 0 {
		Append(view, missing(stage.Name(stage.Intelligence)))
	}
	for _, s := range matched {
		Append(view, r.stageSection("intel-stage", s))
	}
	Append(container, view)
}

// RenderAnalysis renders introduction, discovery and patch stages in
// document order.
func (r *Renderer) RenderAnalysis(markdown string, container *html.Node) {
	stages, ok := r.begin(ViewAnalysis, markdown, container)
	if !ok {
		return
	}
	view := Element("div", "class", "analysis-view")
	Append(view, titleNode(markdown))
	matched := filterStages(stages, func(s stage.Stage) bool {
		n, ok := s.Number()
		return ok && analysisStages[n]
	})
	if len(matched) == 0 {
		Append(view, missing("root cause"))
	}
	for _, s := range matched {
		Append(view, r.stageSection("analysis-stage", s))
	}
	Append(container, view)
}

func (r *Renderer) stageSection(class string, s stage.Stage) *html.Node {
	sec := Element("section",
		"class", class,
		"data-stage-num", stageNumAttr(s),
		"data-line", strconv.Itoa(s.StartLine),
	)
	return Append(sec,
		Append(Element("span", "class", ClassBadge), Text(badgeText(s))),
		Append(Element("h2", "class", ClassStageTitle), Text(s.Title)),
		r.MetaList(s.Metadata),
		r.BodyNode(ClassStageBody, s.Body(), nil),
	)
}

// RenderCompletion renders the completion dashboard for all nine stages.
func (r *Renderer) RenderCompletion(markdown string, container *html.Node) {
	stages, ok := r.begin(ViewCompletion, markdown, container)
	if !ok {
		return
	}
	rep := completion.NewScorer(r.Vocab).Score(stages)

	view := Element("div", "class", "completion-view")
	overall := Element("div", "class", "overall-score", "data-score", strconv.Itoa(rep.Overall))
	Append(overall,
		Append(Element("span", "class", "score-label"), Text("Overall completion")),
		Append(Element("span", "class", "score-value"), Text(percent(rep.Overall))),
		progress(rep.Overall),
	)
	list := Element("div", "class", "stage-scores")
	for _, sc := range rep.Stages {
		Append(list, scoreCard(sc))
	}
	Append(view, titleNode(markdown), overall, list)
	Append(container, view)
}

func scoreCard(sc completion.StageCompletion) *html.Node {
	card := Element("div",
		"class", "stage-score "+scoreClass(sc.Completion),
		"data-stage-num", strconv.Itoa(sc.StageNum),
		"data-score", strconv.Itoa(sc.Completion),
	)
	SetClass(card, "absent", !sc.Present)
	Append(card,
		Append(Element("span", "class", ClassBadge), Text(strconv.Itoa(sc.StageNum))),
		Append(Element("span", "class", "stage-name"), Text(sc.Title)),
		Append(Element("span", "class", "stage-percent"), Text(percent(sc.Completion))),
		progress(sc.Completion),
	)
	if len(sc.Subsections) > 0 {
		checks := Element("ul", "class", "subsection-checks")
		for _, sub := range sc.Subsections {
			mark, class := "✗", "check pending"
			if sub.Complete {
				mark, class = "✓", "check done"
			}
			Append(checks, Append(Element("li", "class", class), Text(mark+" "+sub.Title)))
		}
		Append(card, checks)
	}
	if len(sc.Todos) > 0 {
		todos := Element("ul", "class", "todo-list")
		for _, td := range sc.Todos {
			Append(todos, Append(Element("li", "class", "todo"),
				Append(Element("span", "class", "todo-location"), Text(td.Location)),
				Append(Element("span", "class", "todo-text"), Text(td.Text)),
			))
		}
		Append(card, todos)
	}
	return card
}

func scoreClass(p int) string {
	switch {
	case p >= 100:
		return "complete"
	case p > 0:
		return "partial"
	default:
		return "empty"
	}
}

func percent(p int) string {
	return strconv.Itoa(p) + "%"
}

func progress(p int) *html.Node {
	bar := Element("div", "class", "progress-bar", "style", "width: "+percent(p))
	return Append(Element("div", "class", "progress"), bar)
}
