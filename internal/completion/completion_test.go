package completion

import (
	"testing"

	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

func parseOne(t *testing.T, md string) stage.Stage {
	t.Helper()
	stages := stage.ParseLifecycleStages(md)
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(stages))
	}
	return stages[0]
}

func TestScoreStage_Table(t *testing.T) {
	st := parseOne(t, `## 1. 基本信息

| 字段 | 内容 | 来源 |
|:---|---|---:|
| CVE | CVE-2024-1234 | NVD |
| 产品 | libfoo | vendor |
| 严重性 | TODO: confirm | |
`)
	sc := NewScorer(vocab.Default()).ScoreStage(st)
	if sc.Completion != 67 {
		t.Errorf("completion = %d, want 67", sc.Completion)
	}
	if len(sc.Subsections) != 3 {
		t.Errorf("expected 3 row checks, got %d", len(sc.Subsections))
	}
	if len(sc.Todos) != 2 {
		t.Fatalf("expected 2 todos, got %+v", sc.Todos)
	}
	if sc.Todos[0].Location != "严重性 - 内容" || sc.Todos[1].Location != "严重性 - 来源" {
		t.Errorf("unexpected todo locations: %+v", sc.Todos)
	}
	if sc.HasMetadata {
		t.Error("basic info never gets a metadata bonus")
	}
}

func TestScoreStage_Subsections(t *testing.T) {
	st := parseOne(t, `## 3. 漏洞发现

### 发现过程
Fuzzing found it.

### 复现步骤
todo: write steps

#### 环境
Ubuntu 22.04
`)
	sc := Score([]stage.Stage{st}).Stages[2]
	if sc.StageNum != 3 {
		t.Fatalf("stage num = %d", sc.StageNum)
	}
	// 2 of 3 subsections complete
	if sc.Completion != 67 {
		t.Errorf("completion = %d, want 67", sc.Completion)
	}
	if len(sc.Todos) != 1 || sc.Todos[0].Location != "复现步骤" {
		t.Errorf("unexpected todos: %+v", sc.Todos)
	}
}

func TestScoreStage_Binary(t *testing.T) {
	s := NewScorer(vocab.Default())
	done := s.ScoreStage(parseOne(t, "## 6. 漏洞公开\nPublished on the list."))
	if done.Completion != 100 {
		t.Errorf("completion = %d, want 100", done.Completion)
	}
	todo := s.ScoreStage(parseOne(t, "## 6. 漏洞公开\nTODO: link the advisory"))
	if todo.Completion != 0 {
		t.Errorf("completion = %d, want 0", todo.Completion)
	}
	empty := s.ScoreStage(parseOne(t, "## 6. 漏洞公开\n"))
	if empty.Completion != 0 || empty.HasContent {
		t.Errorf("empty stage scored %+v", empty)
	}
}

func TestScoreStage_MetadataBonus(t *testing.T) {
	st := parseOne(t, `## 5. 漏洞修复

- **修复版本**：vX.Y.Z
- **补丁链接**：https://github.com/foo/bar/commit/8e1f2a9

### 修复说明
TODO: explain
`)
	sc := Score([]stage.Stage{st}).Stages[4]
	if !sc.HasMetadata || sc.MetadataComplete {
		t.Errorf("metadata flags = %v/%v", sc.HasMetadata, sc.MetadataComplete)
	}
	// subsection incomplete (0) + round(20 * 1/2)
	if sc.Completion != 10 {
		t.Errorf("completion = %d, want 10", sc.Completion)
	}

	capped := parseOne(t, "## 5. 漏洞修复\n- **修复版本**：2.3.2\n\nFixed upstream.")
	if got := NewScorer(vocab.Default()).ScoreStage(capped).Completion; got != 100 {
		t.Errorf("completion = %d, want capped 100", got)
	}
}

func TestScore_OverallAndDuplicates(t *testing.T) {
	md := "## 2. 漏洞引入\nTODO: find commit\n" +
		"## 2. 漏洞引入 (backport)\nIntroduced in 1.0.\n" +
		"## 4. 漏洞上报\nReported by mail.\n" +
		"## Appendix\nnot scored\n"
	rep := Score(stage.ParseLifecycleStages(md))
	if len(rep.Stages) != stage.Count {
		t.Fatalf("got %d stages, want %d", len(rep.Stages), stage.Count)
	}
	if rep.Stages[1].Completion != 100 || rep.Stages[1].Title != "2. 漏洞引入 (backport)" {
		t.Errorf("best duplicate should win: %+v", rep.Stages[1])
	}
	if rep.Stages[0].Present || rep.Stages[0].Title != "基本信息" {
		t.Errorf("missing stage should carry canonical name: %+v", rep.Stages[0])
	}
	// (100 + 100) / 9
	if rep.Overall != 22 {
		t.Errorf("overall = %d, want 22", rep.Overall)
	}
}

func TestScore_Empty(t *testing.T) {
	rep := Score(nil)
	if rep.Overall != 0 || len(rep.Stages) != stage.Count {
		t.Errorf("unexpected empty report: %+v", rep)
	}
}
