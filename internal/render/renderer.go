package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/timeline"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

// View names one of the derived report views.
type View string

const (
	ViewLifecycle      View = "lifecycle"
	ViewExploitability View = "exploitability"
	ViewIntelligence   View = "intelligence"
	ViewAnalysis       View = "analysis"
	ViewCompletion     View = "completion"
)

// Views returns every view in tab order.
func Views() []View {
	return []View{ViewLifecycle, ViewExploitability, ViewIntelligence, ViewAnalysis, ViewCompletion}
}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Views() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// EmptyMessage is shown when the document is blank.
const EmptyMessage = "Start writing the report in the editor to see this view."

// Renderer builds view DOM from markdown. The zero value is not usable; use New.
type Renderer struct {
	Converter   Converter
	Highlighter Highlighter
	Vocab       vocab.Vocabulary
	Policy      timeline.Policy
	Logger      *log.Logger
}

// New returns a renderer wired to goldmark and chroma.
func New(v vocab.Vocabulary, policy timeline.Policy, logger *log.Logger) *Renderer {
	r := &Renderer{
		Highlighter: NewChromaHighlighter("github"),
		Vocab:       v,
		Policy:      policy,
		Logger:      logger,
	}
	r.Converter = NewGoldmarkConverter(r.HighlightCode)
	return r
}

func (r *Renderer) warn(msg string, keyvals ...interface{}) {
	if r.Logger != nil {
		r.Logger.Warn(msg, keyvals...)
	}
}

func (r *Renderer) errorf(msg string, keyvals ...interface{}) {
	if r.Logger != nil {
		r.Logger.Error(msg, keyvals...)
	}
}

// HighlightCode is the converter's code hook. Language aliases are resolved
// here; a failing or panicking highlighter only affects this block.
func (r *Renderer) HighlightCode(code, lang string) (out string, err error) {
	if r.Highlighter == nil {
		return escape(code), nil
	}
	defer func() {
		if p := recover(); p != nil {
			r.warn("highlighter panicked", "lang", lang, "panic", p)
			out, err = "", fmt.Errorf("highlighter panic: %v", p)
		}
	}()
	canonical := CanonicalLanguage(lang)
	if canonical == "" {
		out, err = r.Highlighter.AutoDetect(code)
	} else {
		out, err = r.Highlighter.Highlight(code, canonical)
	}
	if err != nil {
		r.warn("highlight failed", "lang", lang, "err", err)
	}
	return out, err
}

// Stages parses markdown with the renderer's vocabulary.
func (r *Renderer) Stages(markdown string) []stage.Stage {
	return stage.NewParser(r.Vocab).Parse(markdown)
}

// Timeline parses and groups markdown.
func (r *Renderer) Timeline(markdown string) []timeline.Node {
	return timeline.NewClusterer(r.Vocab, r.Policy).Group(r.Stages(markdown))
}

// Completion scores markdown.
func (r *Renderer) Completion(markdown string) completion.Report {
	return completion.NewScorer(r.Vocab).Score(r.Stages(markdown))
}

// Render dispatches to the view's entry point.
func (r *Renderer) Render(view View, markdown string, container *html.Node) {
	switch view {
	case ViewLifecycle:
		r.RenderLifecycle(markdown, container)
	case ViewExploitability:
		r.RenderExploitability(markdown, container)
	case ViewIntelligence:
		r.RenderIntelligence(markdown, container)
	case ViewAnalysis:
		r.RenderAnalysis(markdown, container)
	case ViewCompletion:
		r.RenderCompletion(markdown, container)
	default:
		r.errorf("unknown view", "view", view)
	}
}

// RenderString renders a view into a fresh container and returns its HTML.
func (r *Renderer) RenderString(view View, markdown string) string {
	c := NewContainer()
	r.Render(view, markdown, c)
	return InnerHTML(c)
}

// begin validates the container and handles the blank and stage-less
// documents shared by every view. It returns the parsed stages and false when
// the caller has nothing left to do.
func (r *Renderer) begin(view View, markdown string, container *html.Node) ([]stage.Stage, bool) {
	if container == nil {
		r.errorf("render target missing", "view", view)
		return nil, false
	}
	ClearChildren(container)
	SetAttr(container, "data-view", string(view))
	if strings.TrimSpace(markdown) == "" {
		Append(container, Append(Element("div", "class", "placeholder"), Text(EmptyMessage)))
		return nil, false
	}
	stages := r.Stages(markdown)
	if len(stages) == 0 && view != ViewCompletion {
		r.renderRaw(markdown, container)
		return nil, false
	}
	return stages, true
}

func (r *Renderer) renderRaw(markdown string, container *html.Node) {
	raw := Element("div", "class", "raw-view")
	Append(raw, r.MarkdownNodes(markdown)...)
	Append(container, raw)
}

func titleNode(markdown string) *html.Node {
	return Append(Element("h1", "class", "report-title"), Text(stage.ExtractTitle(markdown)))
}

// MetaList renders stage metadata as ul.stage-meta.
func (r *Renderer) MetaList(md stage.Metadata) *html.Node {
	ul := Element("ul", "class", "stage-meta")
	for _, it := range md.Items {
		li := Element("li", "class", "meta-item meta-"+string(it.Type), "data-type", string(it.Type))
		Append(li,
			Append(Element("span", "class", "meta-icon"), Text(it.Icon)),
			Append(Element("span", "class", "meta-label"), Text(it.Label)),
			metaValue(it),
		)
		Append(ul, li)
	}
	return ul
}

func metaValue(it stage.MetadataItem) *html.Node {
	span := Element("span", "class", "meta-value")
	if text, url, ok := vocab.SplitLink(it.Value); ok && safeURL(url) {
		return Append(span, Append(Element("a", "href", url, "target", "_blank", "rel", "noopener"), Text(text)))
	}
	if it.Type == vocab.TypeLink && vocab.IsURL(it.Value) && safeURL(it.Value) {
		return Append(span, Append(Element("a", "href", it.Value, "target", "_blank", "rel", "noopener"), Text(it.Value)))
	}
	return Append(span, Text(it.Value))
}

func safeURL(u string) bool {
	l := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func badgeText(s stage.Stage) string {
	if n, ok := s.Number(); ok {
		return fmt.Sprintf("%d", n)
	}
	return "?"
}

func stageNumAttr(s stage.Stage) string {
	if n, ok := s.Number(); ok {
		return fmt.Sprintf("%d", n)
	}
	return ""
}
