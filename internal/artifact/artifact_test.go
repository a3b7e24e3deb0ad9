package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/stage"
)

func TestParse_WithFrontmatter(t *testing.T) {
	raw := []byte(`---
title: OpenSSL heap overflow
cve: CVE-2024-1234
severity: high
tags:
  - openssl
  - heap
---

# OpenSSL heap overflow

## 1. 基本信息
`)
	r, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Meta.CVE != "CVE-2024-1234" {
		t.Errorf("cve = %q, want %q", r.Meta.CVE, "CVE-2024-1234")
	}
	if len(r.Meta.Tags) != 2 {
		t.Errorf("tags = %v", r.Meta.Tags)
	}
	if !strings.HasPrefix(r.Body, "# OpenSSL heap overflow") {
		t.Errorf("body should start at the title, got %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	raw := []byte("# Just a report\n\nSome content.")
	r, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Meta.CVE != "" {
		t.Errorf("expected empty cve, got %q", r.Meta.CVE)
	}
	if r.Body != string(raw) {
		t.Error("body should be the whole document")
	}
	if r.Title() != "Just a report" {
		t.Errorf("Title() = %q", r.Title())
	}
}

func TestParse_EmptyFrontmatter(t *testing.T) {
	r, err := Parse([]byte("---\n---\n# Body\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Body != "# Body\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_UnterminatedFrontmatter(t *testing.T) {
	if _, err := Parse([]byte("---\ncve: x\nno closing delimiter")); err == nil {
		t.Fatal("expected error for unterminated front matter")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("---\ntags: [a\n---\nbody")); err == nil {
		t.Fatal("expected error for invalid front matter")
	}
}

func TestValidate(t *testing.T) {
	r := &Report{Body: "# R\n\n## 1. 基本信息\n\n## 5. 漏洞修复\n\n## 漏洞利用\n"}
	missing := Validate(r)
	if len(missing) != 6 {
		t.Fatalf("expected 6 missing stages, got %d", len(missing))
	}
	if missing[0].Num != stage.Introduction || missing[len(missing)-1].Num != stage.Mitigation {
		t.Errorf("missing stages out of order: %v", missing)
	}
	if len(Validate(nil)) != stage.Count {
		t.Error("nil report misses every stage")
	}
}

func TestStoreAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "cve.md")
	r := &Report{
		Meta: ReportMeta{
			CVE:     "CVE-2024-1234",
			Author:  "alice",
			Updated: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Body: "# Report\n\n## 5. 漏洞修复\n\nFixed.\n",
	}

	if err := Store(path, r); err != nil {
		t.Fatalf("store report: %v", err)
	}
	if r.FilePath != path {
		t.Errorf("FilePath = %q", r.FilePath)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if loaded.Meta.CVE != "CVE-2024-1234" || loaded.Meta.Author != "alice" {
		t.Errorf("loaded meta = %+v", loaded.Meta)
	}
	if !loaded.Meta.Updated.Equal(r.Meta.Updated) {
		t.Errorf("updated = %v, want %v", loaded.Meta.Updated, r.Meta.Updated)
	}
	if loaded.Body != r.Body {
		t.Errorf("body = %q, want %q", loaded.Body, r.Body)
	}
}

func TestStore_NoMetaWritesBodyOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.md")
	if err := Store(path, &Report{Body: "# Plain\n"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# Plain\n" {
		t.Errorf("file = %q", data)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTemplate(t *testing.T) {
	r := Template("Log4Shell")
	if r.Meta.Title != "Log4Shell" || r.Title() != "Log4Shell" {
		t.Errorf("title = %q", r.Meta.Title)
	}
	if missing := Validate(r); len(missing) != 0 {
		t.Errorf("template misses stages: %v", missing)
	}

	stages := stage.ParseLifecycleStages(r.Body)
	if len(stages) != stage.Count {
		t.Fatalf("expected %d stages, got %d", stage.Count, len(stages))
	}
	report := completion.Score(stages)
	if report.Overall != 0 {
		t.Errorf("fresh template should score 0, got %d", report.Overall)
	}
	var todos int
	for _, sc := range report.Stages {
		todos += len(sc.Todos)
	}
	if todos == 0 {
		t.Error("template should list TODO items")
	}

	if Template("  ").Meta.Title != stage.DefaultTitle {
		t.Error("blank title should fall back to the default")
	}
}
