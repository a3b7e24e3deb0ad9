package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestBold_ContainsText(t *testing.T) {
	Init(false)
	if result := Bold("hello"); !strings.Contains(result, "hello") {
		t.Errorf("Bold output should contain 'hello', got %q", result)
	}
}

func TestColorDisabled_PlainText(t *testing.T) {
	Init(true)
	defer Init(false)

	for in, out := range map[string]string{
		Bold("hello"): "hello",
		Red("error"):  "error",
		Green("ok"):   "ok",
		Yellow("w"):   "w",
		Dim("dim"):    "dim",
	} {
		if in != out {
			t.Errorf("expected plain %q when color disabled, got %q", out, in)
		}
	}
}

func TestLoggerInitialized(t *testing.T) {
	Init(false)
	if Logger == nil {
		t.Fatal("Logger should be initialized after Init()")
	}
	SetVerbose(true)
	SetVerbose(false)
}

func TestMessagesWriteToOut(t *testing.T) {
	Init(true)
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	defer func() { Out = prev }()

	Banner("score", "report.md")
	Success("saved")
	Warning("careful")
	Detail("stage", "5")

	got := buf.String()
	for _, want := range []string{"vulnlife", "SCORE", "report.md", "✓ saved", "⚠ careful", "stage 5"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPercentAndProgress(t *testing.T) {
	Init(true)
	if got := Percent(42); got != " 42%" {
		t.Errorf("Percent = %q", got)
	}
	bar := ProgressBar(50, 10)
	if strings.Count(bar, "█") != 5 || strings.Count(bar, "░") != 5 {
		t.Errorf("ProgressBar = %q", bar)
	}
	if strings.Count(ProgressBar(150, 4), "█") != 4 {
		t.Error("ProgressBar should clamp above 100")
	}
}

func TestRenderMarkdownString(t *testing.T) {
	out, err := RenderMarkdownString("# Title\n\nsome **bold** text", 40)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") {
		t.Errorf("rendered output missing text: %q", out)
	}
}

func TestAppleScriptString(t *testing.T) {
	if got := appleScriptString(`say "hi" \o/`); got != `"say \"hi\" \\o/"` {
		t.Errorf("appleScriptString = %s", got)
	}
}
