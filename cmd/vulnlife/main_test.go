package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/timeline"
	"github.com/kokistudios/vulnlife/internal/ui"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func setupHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("VULNLIFE_HOME", home)
	t.Setenv("GITHUB_TOKEN", "")
	return home
}

func newReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log4shell.md")
	if _, err := run(t, "new", path, "--title", "Log4Shell"); err != nil {
		t.Fatalf("new: %v", err)
	}
	return path
}

func TestNewAndValidate(t *testing.T) {
	setupHome(t)
	path := newReport(t)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Log4Shell") {
		t.Errorf("report missing title:\n%s", data)
	}
	if _, err := run(t, "validate", path); err != nil {
		t.Errorf("template should validate: %v", err)
	}
	if _, err := run(t, "new", path); err == nil {
		t.Error("expected error creating over an existing file")
	}

	partial := filepath.Join(t.TempDir(), "partial.md")
	os.WriteFile(partial, []byte("# x\n\n## 2. 漏洞引入\n\ntext\n"), 0644)
	if _, err := run(t, "validate", partial); err == nil || !strings.Contains(err.Error(), "8 of 9") {
		t.Errorf("expected 8 missing stages, got %v", err)
	}
}

func TestValidate_Checklist(t *testing.T) {
	setupHome(t)
	partial := filepath.Join(t.TempDir(), "partial.md")
	os.WriteFile(partial, []byte("# x\n\n## 2. 漏洞引入\n\ntext\n"), 0644)

	var buf bytes.Buffer
	prev := ui.Out
	ui.Out = &buf
	defer func() { ui.Out = prev }()

	run(t, "validate", partial)
	out := buf.String()
	if !strings.Contains(out, "✓ 2. 漏洞引入") {
		t.Errorf("present stage should be checked:\n%s", out)
	}
	if !strings.Contains(out, "✗ 1. 基本信息") || !strings.Contains(out, "✗ 9. 防护检测") {
		t.Errorf("missing stages should be crossed:\n%s", out)
	}
}

func TestJSONCommands(t *testing.T) {
	setupHome(t)
	path := newReport(t)

	out, err := run(t, "stages", path, "--json")
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	var stages []stage.Stage
	if err := json.Unmarshal([]byte(out), &stages); err != nil {
		t.Fatalf("stages json: %v", err)
	}
	if len(stages) != stage.Count {
		t.Errorf("expected %d stages, got %d", stage.Count, len(stages))
	}

	out, err = run(t, "score", path, "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var rep completion.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("score json: %v", err)
	}
	if len(rep.Stages) != stage.Count {
		t.Errorf("expected %d scored stages, got %d", stage.Count, len(rep.Stages))
	}
	if rep.Overall >= 100 {
		t.Errorf("a fresh template should not be complete, got %d", rep.Overall)
	}

	out, err = run(t, "timeline", path, "--json", "--order", "basic-info-first")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	var nodes []timeline.Node
	if err := json.Unmarshal([]byte(out), &nodes); err != nil {
		t.Fatalf("timeline json: %v", err)
	}
	if timeline.StageCount(nodes) != stage.Count {
		t.Errorf("timeline holds %d stages", timeline.StageCount(nodes))
	}
}

func TestRender(t *testing.T) {
	setupHome(t)
	path := newReport(t)

	out, err := run(t, "render", path, "--view", "completion")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<div") {
		t.Errorf("expected HTML, got %q", out)
	}

	css, err := run(t, "render", path, "--css")
	if err != nil {
		t.Fatalf("render --css: %v", err)
	}
	if !strings.Contains(css, ".chroma") {
		t.Error("stylesheet should target .chroma")
	}

	if _, err := run(t, "render", path, "--view", "bogus"); err == nil {
		t.Error("expected error for unknown view")
	}
}

func TestExportImport(t *testing.T) {
	setupHome(t)
	if _, err := run(t, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	path := newReport(t)
	dir := t.TempDir()

	if _, err := run(t, "export", path, "-o", dir); err != nil {
		t.Fatalf("export: %v", err)
	}
	bundles, _ := filepath.Glob(filepath.Join(dir, "*.tar.gz"))
	if len(bundles) != 1 {
		t.Fatalf("expected one bundle, got %v", bundles)
	}

	if _, err := run(t, "import", bundles[0], "--preview"); err != nil {
		t.Fatalf("import --preview: %v", err)
	}

	restored := filepath.Join(t.TempDir(), "restored.md")
	if _, err := run(t, "import", bundles[0], "-o", restored); err != nil {
		t.Fatalf("import: %v", err)
	}
	want, _ := os.ReadFile(path)
	got, _ := os.ReadFile(restored)
	if string(got) != string(want) {
		t.Error("imported markdown differs from the exported file")
	}

	if _, err := run(t, "import", bundles[0]); err != nil {
		t.Fatalf("import as draft: %v", err)
	}
	out, err := run(t, "draft", "show", "Log4Shell")
	if err != nil {
		t.Fatalf("draft show: %v", err)
	}
	if out != string(want) {
		t.Error("draft content differs from the exported file")
	}
}

func TestConfig(t *testing.T) {
	setupHome(t)
	if _, err := run(t, "config", "set", "server.port", "9000"); err == nil {
		t.Error("config set should require init")
	}
	if _, err := run(t, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := run(t, "config", "set", "server.port", "9000"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "port: 9000") {
		t.Errorf("config show missing port:\n%s", out)
	}
	if _, err := run(t, "config", "set", "nope.key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestDoctor(t *testing.T) {
	home := setupHome(t)
	if _, err := run(t, "doctor"); err == nil {
		t.Error("doctor should fail before init")
	}
	if _, err := run(t, "doctor", "--fix"); err != nil {
		t.Fatalf("doctor --fix: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); err != nil {
		t.Errorf("doctor --fix should create config.yaml: %v", err)
	}
}

func TestGist_NoToken(t *testing.T) {
	setupHome(t)
	path := newReport(t)
	if _, err := run(t, "gist", "save", path); err == nil {
		t.Error("expected error without a token")
	}
}
