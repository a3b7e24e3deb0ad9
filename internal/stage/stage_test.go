package stage

import (
	"strings"
	"testing"

	"github.com/kokistudios/vulnlife/internal/vocab"
)

const sampleReport = `---
cve: CVE-2024-12345
title: front matter title
---

# libfoo heap overflow

Intro text that belongs to no stage.

## 1. 基本信息

| 字段 | 内容 |
|---|---|
| CVE | CVE-2024-12345 |

## 2. 漏洞引入

- **引入时间**：2021-03-04
- **引入版本**：v2.3.1

### 引入提交

Commit text.

## 4. 漏洞上报

- **上报时间**：2024-01-01（邮件）
- **报告者**：Alice

#### Notes

TODO: add mail thread
`

func TestExtractStageNumber(t *testing.T) {
	cases := []struct {
		title string
		want  int // 0 means nil
	}{
		{"4. 漏洞上报", 4},
		{"漏洞上报", 4},
		{"Random Heading", 0},
		{"9 防护检测", 9},
		{"1.基本信息", 1},
		{"10. 漏洞利用", 8}, // out of range numeral falls back to keywords
		{"12. Something", 0},
		{"威胁情报汇总", 7},
		{"Exploit analysis", 0},
		{"修复建议", 0},
		{"参考报告", 0},
		{"Prefix notes", 0},
		{"Fixture setup", 0},
		{"附录：检测脚本", 0},
		{"Patchwork", 0},
	}
	for _, c := range cases {
		got := ExtractStageNumber(c.title)
		if c.want == 0 {
			if got != nil {
				t.Errorf("ExtractStageNumber(%q) = %d, want nil", c.title, *got)
			}
			continue
		}
		if got == nil || *got != c.want {
			t.Errorf("ExtractStageNumber(%q) = %v, want %d", c.title, got, c.want)
		}
	}
}

func TestParser_StageAliases(t *testing.T) {
	p := NewParser(vocab.Default().Merge(vocab.Vocabulary{
		StageAliases: map[string]int{"Patch": 5, "exploit": 8},
	}))
	md := "## 1. 基本信息\na\n## Upstream patch\nb\n## Exploit analysis\nc\n## 参考报告\nd\n"
	stages := p.Parse(md)
	if len(stages) != 4 {
		t.Fatalf("got %d stages, want 4", len(stages))
	}
	if !stages[1].Is(Patch) || !stages[2].Is(Exploitation) {
		t.Errorf("aliases not applied: %v %v", stages[1].Num, stages[2].Num)
	}
	if stages[3].Num != nil {
		t.Errorf("unaliased heading resolved to %d", *stages[3].Num)
	}

	if got := ParseLifecycleStages(md); got[1].Num != nil || got[2].Num != nil {
		t.Error("default parser should not resolve alias headings")
	}
}

func TestParseLifecycleStages_Order(t *testing.T) {
	stages := ParseLifecycleStages(sampleReport)
	if len(stages) != 3 {
		t.Fatalf("got %d stages, want 3", len(stages))
	}
	wantTitles := []string{"1. 基本信息", "2. 漏洞引入", "4. 漏洞上报"}
	for i, w := range wantTitles {
		if stages[i].Title != w {
			t.Errorf("stage %d title = %q, want %q", i, stages[i].Title, w)
		}
	}
	if !stages[2].Is(Report) {
		t.Errorf("expected third stage to resolve to stage 4, got %v", stages[2].Num)
	}
	if stages[0].StartLine != 10 {
		t.Errorf("first stage StartLine = %d, want 10", stages[0].StartLine)
	}
}

func TestParseLifecycleStages_FrontMatterSkipped(t *testing.T) {
	md := "---\n## not a stage\n---\n## 3. 漏洞发现\nbody\n"
	stages := ParseLifecycleStages(md)
	if len(stages) != 1 {
		t.Fatalf("got %d stages, want 1", len(stages))
	}
	if stages[0].Content != "body" {
		t.Errorf("content = %q, want %q", stages[0].Content, "body")
	}
}

func TestParseLifecycleStages_Empty(t *testing.T) {
	if got := ParseLifecycleStages(""); len(got) != 0 {
		t.Errorf("expected no stages for empty input, got %d", len(got))
	}
	if got := ParseLifecycleStages("# Title only\n\nsome text"); len(got) != 0 {
		t.Errorf("expected no stages without ## headings, got %d", len(got))
	}
}

func TestParseLifecycleStages_DuplicatesKeepOrder(t *testing.T) {
	md := "## 5. 漏洞修复\na\n## Unknown\nb\n## 5. 漏洞修复 (backport)\nc\n"
	stages := ParseLifecycleStages(md)
	if len(stages) != 3 {
		t.Fatalf("got %d stages, want 3", len(stages))
	}
	if !stages[0].Is(Patch) || stages[1].Num != nil || !stages[2].Is(Patch) {
		t.Errorf("unexpected stage numbers: %v %v %v", stages[0].Num, stages[1].Num, stages[2].Num)
	}
}

func TestParse_Headings(t *testing.T) {
	stages := ParseLifecycleStages(sampleReport)
	h := stages[1].Headings
	if len(h) != 1 || h[0].Level != 3 || h[0].Title != "引入提交" {
		t.Fatalf("unexpected headings: %+v", h)
	}
	if h[0].Line != 21 {
		t.Errorf("heading line = %d, want 21", h[0].Line)
	}
}

func TestParse_ReparseIsStable(t *testing.T) {
	stages := ParseLifecycleStages(sampleReport)
	var b strings.Builder
	b.WriteString("# " + ExtractTitle(sampleReport) + "\n\n")
	for _, s := range stages {
		b.WriteString("## " + s.Title + "\n\n" + s.Content + "\n\n")
	}
	again := ParseLifecycleStages(b.String())
	if len(again) != len(stages) {
		t.Fatalf("reparse produced %d stages, want %d", len(again), len(stages))
	}
	for i := range stages {
		if again[i].Title != stages[i].Title || again[i].Content != stages[i].Content {
			t.Errorf("stage %d changed after reparse", i)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	if got := ExtractTitle(sampleReport); got != "libfoo heap overflow" {
		t.Errorf("ExtractTitle = %q", got)
	}
	if got := ExtractTitle("## only stages"); got != DefaultTitle {
		t.Errorf("ExtractTitle fallback = %q, want %q", got, DefaultTitle)
	}
	if got := ExtractTitle("---\n# hidden\n---\n# shown"); got != "shown" {
		t.Errorf("ExtractTitle should skip front matter, got %q", got)
	}
}

func TestExtractStageMetadata(t *testing.T) {
	content := strings.Join([]string{
		"- **时间**：2024-01-01",
		"- **发现者**：Bob (independent)",
		"- **影响版本**: < 2.3.1",
		"- **公告链接**：[SA-2024-01](https://vendor.test/sa/2024-01)",
		"- **备注**：https://vendor.test/notes",
		"- **状态**：待编辑",
		"- **CVSS**：...",
		"- **严重性**：N/A",
		"### Details",
		"- **后续时间**：2025-01-01",
	}, "\n")
	md := ExtractStageMetadata(content)
	if len(md.Items) != 5 {
		t.Fatalf("got %d items, want 5: %+v", len(md.Items), md.Items)
	}
	want := []struct {
		label string
		value string
		typ   vocab.ItemType
	}{
		{"时间", "2024-01-01", vocab.TypeTime},
		{"发现者", "Bob", vocab.TypePerson},
		{"影响版本", "< 2.3.1", vocab.TypeVersion},
		{"公告链接", "[SA-2024-01](https://vendor.test/sa/2024-01)", vocab.TypeLink},
		{"备注", "https://vendor.test/notes", vocab.TypeLink},
	}
	for i, w := range want {
		it := md.Items[i]
		if it.Label != w.label || it.Value != w.value || it.Type != w.typ {
			t.Errorf("item %d = %+v, want %s/%s/%s", i, it, w.label, w.value, w.typ)
		}
		if it.Icon == "" {
			t.Errorf("item %d has no icon", i)
		}
	}
}

func TestExtractStageMetadata_BoldColonVariant(t *testing.T) {
	md := ExtractStageMetadata("- **修复版本：** 1.4.2")
	if len(md.Items) != 1 || md.Items[0].Value != "1.4.2" || md.Items[0].Type != vocab.TypeVersion {
		t.Errorf("unexpected items: %+v", md.Items)
	}
}

func TestExtractStageMetadata_IndentedBulletIgnored(t *testing.T) {
	content := "- **时间**：2024-01-01\n  - **子时间**：2024-02-02\n\t- **备注**：nested"
	md := ExtractStageMetadata(content)
	if len(md.Items) != 1 || md.Items[0].Label != "时间" {
		t.Errorf("only the top-level bullet is metadata, got %+v", md.Items)
	}
	if _, _, ok := MatchBullet("- **时间**：2024-01-01\r"); !ok {
		t.Error("CRLF line should still match")
	}
	if n := MetadataLineCount(content); n != 1 {
		t.Errorf("MetadataLineCount = %d, want 1", n)
	}
}

func TestStageBody(t *testing.T) {
	s := Stage{Content: "- **时间**：2024-01-01\n\n- **作者**：A\n\nProse here.\n\n- plain bullet"}
	if got := s.Body(); got != "Prose here.\n\n- plain bullet" {
		t.Errorf("Body() = %q", got)
	}
}

func TestCanonical(t *testing.T) {
	c := Canonical()
	if len(c) != Count {
		t.Fatalf("expected %d canonical stages, got %d", Count, len(c))
	}
	for i, cs := range c {
		if cs.Num != i+1 {
			t.Errorf("canonical[%d].Num = %d", i, cs.Num)
		}
		if ExtractStageNumber(cs.Name) == nil || *ExtractStageNumber(cs.Name) != cs.Num {
			t.Errorf("canonical name %q does not resolve to %d", cs.Name, cs.Num)
		}
	}
	if Name(0) != "" || Name(10) != "" {
		t.Error("Name should be empty outside 1..9")
	}
}
