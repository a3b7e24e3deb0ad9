package editor

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/reconcile"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/timeline"
)

// DefaultDebounce is the quiet period between the last edit and a render pass.
const DefaultDebounce = 300 * time.Millisecond

// DraftSaver persists the document after each render pass.
type DraftSaver interface {
	SaveDraft(name, text string) error
}

// Options configures a Workspace.
type Options struct {
	Debounce  time.Duration
	Drafts    DraftSaver
	DraftName string
	Logger    *log.Logger
}

// Workspace keeps every view of one document rendered. Buffer changes are
// debounced into render passes; passes are serialized by a mutex, so the
// containers are only ever touched by one pass at a time.
type Workspace struct {
	buf        TextBuffer
	renderer   *render.Renderer
	reconciler *reconcile.Reconciler
	drafts     DraftSaver
	draftName  string
	logger     *log.Logger

	debouncer *Debouncer
	sub       Subscription

	mu         sync.Mutex
	containers map[render.View]*html.Node
	text       string
	version    int
	patched    bool
	stages     []stage.Stage
	nodes      []timeline.Node
	report     completion.Report
}

// NewWorkspace renders buf once and starts following its changes.
func NewWorkspace(buf TextBuffer, r *render.Renderer, opts Options) *Workspace {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w := &Workspace{
		buf:        buf,
		renderer:   r,
		reconciler: reconcile.New(r),
		drafts:     opts.Drafts,
		draftName:  opts.DraftName,
		logger:     opts.Logger,
		containers: make(map[render.View]*html.Node),
	}
	for _, v := range render.Views() {
		w.containers[v] = render.NewContainer()
	}
	w.debouncer = NewDebouncer(opts.Debounce, w.Refresh)
	w.Refresh()
	w.sub = buf.OnChange(func(string) { w.debouncer.Trigger() })
	return w
}

// Buffer returns the underlying text buffer.
func (w *Workspace) Buffer() TextBuffer {
	return w.buf
}

// Renderer returns the renderer used for every pass.
func (w *Workspace) Renderer() *render.Renderer {
	return w.renderer
}

// Refresh runs a render pass for the buffer's current text. Unchanged text
// is skipped after the first pass.
func (w *Workspace) Refresh() {
	text := w.buf.CurrentText()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.version > 0 && text == w.text {
		return
	}

	start := time.Now()
	w.stages = w.renderer.Stages(text)
	w.nodes = timeline.NewClusterer(w.renderer.Vocab, w.renderer.Policy).Group(w.stages)
	w.report = completion.NewScorer(w.renderer.Vocab).Score(w.stages)

	lc := w.containers[render.ViewLifecycle]
	w.patched = w.reconciler.TryIncrementalUpdate(text, lc)
	if !w.patched {
		w.renderPreservingScroll(render.ViewLifecycle, text)
	}
	for _, v := range render.Views() {
		if v != render.ViewLifecycle {
			w.renderPreservingScroll(v, text)
		}
	}
	w.text = text
	w.version++

	if w.logger != nil {
		w.logger.Debug("render pass",
			"version", w.version,
			"stages", len(w.stages),
			"patched", w.patched,
			"took", time.Since(start),
		)
	}
	if w.drafts != nil && w.draftName != "" {
		if err := w.drafts.SaveDraft(w.draftName, text); err != nil && w.logger != nil {
			w.logger.Warn("autosave failed", "draft", w.draftName, "err", err)
		}
	}
}

func (w *Workspace) renderPreservingScroll(v render.View, text string) {
	c := w.containers[v]
	top := reconcile.SaveScroll(c)
	w.renderer.Render(v, text, c)
	reconcile.RestoreScroll(c, top)
}

// Flush runs a pending debounced pass immediately.
func (w *Workspace) Flush() {
	w.debouncer.Flush()
}

// Close stops following the buffer.
func (w *Workspace) Close() {
	w.debouncer.Stop()
	if w.sub != nil {
		w.sub.Unsubscribe()
	}
}

// Snapshot returns a view's HTML and the version it was rendered at.
func (w *Workspace) Snapshot(v render.View) (string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.containers[v]
	if !ok {
		return "", w.version
	}
	return render.InnerHTML(c), w.version
}

// Version returns the number of completed render passes.
func (w *Workspace) Version() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.version
}

// Patched reports whether the last pass updated the lifecycle view in place.
func (w *Workspace) Patched() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.patched
}

// Stages returns the stages parsed in the last pass.
func (w *Workspace) Stages() []stage.Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]stage.Stage, len(w.stages))
	copy(out, w.stages)
	return out
}

// Timeline returns the time nodes computed in the last pass.
func (w *Workspace) Timeline() []timeline.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]timeline.Node, len(w.nodes))
	copy(out, w.nodes)
	return out
}

// Completion returns the scores computed in the last pass.
func (w *Workspace) Completion() completion.Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.report
}

// SetCollapsed records a client-side expand/collapse on the lifecycle view.
func (w *Workspace) SetCollapsed(t reconcile.Target, collapsed bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return reconcile.SetCollapsed(w.containers[render.ViewLifecycle], t, collapsed)
}

// SetScroll records a view's client scroll offset.
func (w *Workspace) SetScroll(v render.View, top int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.containers[v]; ok {
		reconcile.RestoreScroll(c, top)
	}
}
