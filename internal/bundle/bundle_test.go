package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/timeline"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

const doc = "# Heap Overflow <CVE-2024-1>\n\n## 1. 基本信息\n\n| 字段 | 内容 |\n| --- | --- |\n| 漏洞编号 | CVE-2024-1 |\n\n## 5. 漏洞修复\n\n- **修复时间**：2024-02-01\n\n```go\nfmt.Println(1)\n```\n"

func newRenderer() *render.Renderer {
	return render.New(vocab.Default(), timeline.PolicyInsertion, nil)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	m, path, err := Export(doc, newRenderer(), filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if path != filepath.Join(dir, "out"+Ext) {
		t.Errorf("path = %s", path)
	}
	if m.Title != "Heap Overflow <CVE-2024-1>" {
		t.Errorf("title = %q", m.Title)
	}
	if len(m.Stages) != 9 {
		t.Errorf("expected 9 stage scores, got %d", len(m.Stages))
	}
	if m.Overall == 0 {
		t.Error("expected non-zero overall completion")
	}

	b, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if b.Markdown != doc {
		t.Error("report.md does not round-trip")
	}
	if b.Manifest.Overall != m.Overall || b.Manifest.Title != m.Title {
		t.Errorf("manifest = %+v", b.Manifest)
	}
	if len(b.Views) != len(render.Views()) {
		t.Fatalf("expected %d views, got %d", len(render.Views()), len(b.Views))
	}
	lc := b.Views[render.ViewLifecycle]
	if !strings.Contains(lc, "<title>Heap Overflow &lt;CVE-2024-1&gt;</title>") {
		t.Error("page title not escaped")
	}
	if !strings.Contains(lc, "time-node") {
		t.Error("lifecycle page missing timeline")
	}
	found := false
	for _, f := range b.Manifest.Files {
		if f == styleFile {
			found = true
		}
	}
	if !found {
		t.Errorf("style sheet not listed: %v", b.Manifest.Files)
	}
}

func TestExport_DirectoryOutput(t *testing.T) {
	dir := t.TempDir()
	_, path, err := Export(doc, newRenderer(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "heap-overflow-cve-2024-1"+Ext) {
		t.Errorf("path = %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("bundle not written: %v", err)
	}
}

func TestImport_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Ext)
	os.WriteFile(path, []byte("not gzip"), 0644)
	if _, err := Import(path); err == nil {
		t.Error("expected error for invalid bundle")
	}
	if _, err := Import(filepath.Join(t.TempDir(), "missing"+Ext)); err == nil {
		t.Error("expected error for missing bundle")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Heap Overflow":  "heap-overflow",
		"漏洞报告":           "report",
		"  CVE-2024-1! ": "cve-2024-1",
	}
	for in, want := range cases {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
