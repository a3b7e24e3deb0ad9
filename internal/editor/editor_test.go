package editor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kokistudios/vulnlife/internal/reconcile"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/timeline"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
	time.Sleep(90 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDebouncer_FlushAndStop(t *testing.T) {
	var calls int32
	d := NewDebouncer(time.Hour, func() { atomic.AddInt32(&calls, 1) })
	if d.Flush() {
		t.Error("Flush with nothing pending should report false")
	}
	d.Trigger()
	if !d.Pending() {
		t.Error("expected a pending run")
	}
	if !d.Flush() || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Flush should run the pending call, calls = %d", calls)
	}
	d.Trigger()
	d.Stop()
	d.Trigger()
	if d.Flush() || d.Pending() {
		t.Error("stopped debouncer must not run")
	}
}

func TestMemoryBuffer(t *testing.T) {
	b := NewMemoryBuffer("a")
	var got []string
	sub := b.OnChange(func(s string) { got = append(got, s) })
	_ = b.ReplaceAll("b")
	_ = b.ReplaceAll("b")
	sub.Unsubscribe()
	sub.Unsubscribe()
	_ = b.ReplaceAll("c")
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("notifications = %v, want [b]", got)
	}
	if b.CurrentText() != "c" {
		t.Errorf("CurrentText = %q", b.CurrentText())
	}
}

func TestFileBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := os.WriteFile(path, []byte("# one\n"), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := OpenFileBuffer(path)
	if err != nil {
		t.Fatalf("OpenFileBuffer: %v", err)
	}
	defer b.Close()

	if b.CurrentText() != "# one\n" {
		t.Fatalf("CurrentText = %q", b.CurrentText())
	}

	var mu sync.Mutex
	var seen []string
	b.OnChange(func(s string) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}

	if err := b.ReplaceAll("# two\n"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# two\n" {
		t.Errorf("file content = %q", data)
	}
	if count() != 1 {
		t.Errorf("own write notified %d times, want 1", count())
	}

	if err := os.WriteFile(path, []byte("# three\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return b.CurrentText() == "# three\n" })
	waitFor(t, func() bool { return count() == 2 })
}

type memDrafts struct {
	mu    sync.Mutex
	saved map[string]string
	fail  bool
}

func (m *memDrafts) SaveDraft(name, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[name] = text
	return nil
}

const wsDoc = "# Report\n\n## 2. 漏洞引入\n\n- **引入时间**：2021-06-01\n\n### 根因\nroot\n\n## 5. 漏洞修复\n\nFixed.\n"

func newWorkspace(t *testing.T, text string, drafts DraftSaver) (*Workspace, *MemoryBuffer) {
	t.Helper()
	buf := NewMemoryBuffer(text)
	r := render.New(vocab.Default(), timeline.PolicyInsertion, nil)
	w := NewWorkspace(buf, r, Options{Debounce: time.Hour, Drafts: drafts, DraftName: "report"})
	t.Cleanup(w.Close)
	return w, buf
}

func TestWorkspace_InitialRender(t *testing.T) {
	w, _ := newWorkspace(t, wsDoc, nil)
	if w.Version() != 1 {
		t.Fatalf("version = %d, want 1", w.Version())
	}
	for _, v := range render.Views() {
		html, _ := w.Snapshot(v)
		if html == "" {
			t.Errorf("view %s rendered nothing", v)
		}
	}
	if len(w.Stages()) != 2 || len(w.Timeline()) != 2 {
		t.Errorf("stages = %d, nodes = %d", len(w.Stages()), len(w.Timeline()))
	}
	if w.Completion().Overall == 0 {
		t.Error("expected a non-zero overall score")
	}
}

func TestWorkspace_DebouncedPatch(t *testing.T) {
	drafts := &memDrafts{}
	w, buf := newWorkspace(t, wsDoc, drafts)
	if !w.SetCollapsed(reconcile.Target{Node: 0, Stage: 0, Subsection: "根因"}, true) {
		t.Fatal("subsection not found")
	}

	_ = buf.ReplaceAll(strings.Replace(wsDoc, "root", "root cause A", 1))
	_ = buf.ReplaceAll(strings.Replace(wsDoc, "root", "root cause B", 1))
	if w.Version() != 1 {
		t.Fatalf("render ran before the quiet period: version %d", w.Version())
	}
	w.Flush()

	html, version := w.Snapshot(render.ViewLifecycle)
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
	if !w.Patched() {
		t.Error("same structure should be patched in place")
	}
	if !strings.Contains(html, "root cause B") || strings.Contains(html, "root cause A") {
		t.Error("snapshot should reflect only the last edit")
	}
	if !strings.Contains(html, `class="subsection collapsed"`) {
		t.Error("collapsed subsection lost across the pass")
	}
	if drafts.saved["report"] != buf.CurrentText() {
		t.Error("draft not autosaved")
	}
}

func TestWorkspace_StructureChangeFullRender(t *testing.T) {
	w, buf := newWorkspace(t, wsDoc, &memDrafts{fail: true})
	w.SetScroll(render.ViewLifecycle, 250)
	_ = buf.ReplaceAll(wsDoc + "\n## 9. 防护检测\nrules\n")
	w.Flush()
	if w.Patched() {
		t.Error("added stage should force a full render")
	}
	html, _ := w.Snapshot(render.ViewLifecycle)
	if strings.Count(html, `class="stage-card`) != 3 {
		t.Errorf("expected 3 cards after full render")
	}
	w.mu.Lock()
	top := reconcile.SaveScroll(w.containers[render.ViewLifecycle])
	w.mu.Unlock()
	if top != 250 {
		t.Errorf("scroll = %d, want 250 kept across full render", top)
	}
}
