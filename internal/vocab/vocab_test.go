package vocab

import "testing"

func TestIsPlaceholder(t *testing.T) {
	v := Default()
	placeholders := []string{
		"vX.Y.Z",
		"x.y.z",
		"CVE-2024-XXXXX",
		"CVE-XXXX-XXXX",
		"GHSA-xxxx-xxxx-xxxx",
		"YYYY-MM-DD",
		"2000-01-01",
		"https://example.com/advisory",
		"[SA-2024-01](https://example.org/sa)",
		"[commit](https://github.com/foo/bar/commit/abc1234)",
		"researcher",
		"待填写",
		"N/A",
		"deadbeef",
	}
	for _, p := range placeholders {
		if !v.IsPlaceholder(p) {
			t.Errorf("IsPlaceholder(%q) = false, want true", p)
		}
	}

	genuine := []string{
		"v2.3.1",
		"CVE-2024-12345",
		"2024-01-01",
		"Alice Chen",
		"https://nvd.nist.gov/vuln/detail/CVE-2024-12345",
		"[upstream fix](https://github.com/foo/bar/commit/8e1f2a9c)",
		"Linux 6.1",
	}
	for _, r := range genuine {
		if v.IsPlaceholder(r) {
			t.Errorf("IsPlaceholder(%q) = true, want false", r)
		}
	}
}

func TestIsDropped(t *testing.T) {
	v := Default()
	for _, s := range []string{"", "...", "N/A", "tbd", "需要编辑", "to be filled by vendor"} {
		if !v.IsDropped(s) {
			t.Errorf("IsDropped(%q) = false", s)
		}
	}
	if v.IsDropped("2024-01-01") {
		t.Error("real dates must not be dropped")
	}
}

func TestClassifyLabel(t *testing.T) {
	v := Default()
	cases := []struct {
		label, value string
		want         ItemType
	}{
		{"时间", "2024-01-01", TypeTime},
		{"Disclosure date", "2024-01-01", TypeTime},
		{"报告者", "Alice", TypePerson},
		{"影响版本", "< 1.2", TypeVersion},
		{"公告链接", "x", TypeLink},
		{"备注", "see https://a.test/x", TypeLink},
		{"备注", "[a](b)", TypeLink},
		{"备注", "plain", TypeText},
	}
	for _, c := range cases {
		if got := v.ClassifyLabel(c.label, c.value); got != c.want {
			t.Errorf("ClassifyLabel(%q, %q) = %s, want %s", c.label, c.value, got, c.want)
		}
	}
}

func TestHasTodoAndTimeLabel(t *testing.T) {
	v := Default()
	if !v.HasTodo("x todo: y") || v.HasTodo("todos are fine") {
		t.Error("HasTodo must match the marker with its colon, case-insensitively")
	}
	if !v.IsTimeLabel("发现时间") || !v.IsTimeLabel("Report Time") || v.IsTimeLabel("日期") {
		t.Error("IsTimeLabel mismatch")
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	merged := base.Merge(Vocabulary{
		SentinelPhrases: []string{"TBC by vendor", "待编辑"},
		PendingMarker:   "待定",
	})
	if !merged.HasSentinel("tbc by vendor soon") {
		t.Error("merged sentinel not applied")
	}
	if len(merged.SentinelPhrases) != len(base.SentinelPhrases)+1 {
		t.Errorf("duplicates should be dropped, got %d phrases", len(merged.SentinelPhrases))
	}
	if merged.PendingMarker != "待定" || merged.TodoMarker != base.TodoMarker {
		t.Errorf("scalar merge wrong: %q %q", merged.PendingMarker, merged.TodoMarker)
	}
}

func TestStageAlias(t *testing.T) {
	if _, ok := Default().StageAlias("Patch notes"); ok {
		t.Error("default vocabulary should carry no stage aliases")
	}
	v := Default().Merge(Vocabulary{StageAliases: map[string]int{"Patch": 5, "patch review": 3, "bogus": 12}})
	if n, ok := v.StageAlias("Upstream patch"); !ok || n != 5 {
		t.Errorf("StageAlias(Upstream patch) = %d, %v", n, ok)
	}
	if n, ok := v.StageAlias("Patch review log"); !ok || n != 3 {
		t.Errorf("longer alias should win, got %d, %v", n, ok)
	}
	if _, ok := v.StageAlias("bogus heading"); ok {
		t.Error("out-of-range alias should be ignored")
	}
}

func TestSplitLink(t *testing.T) {
	text, url, ok := SplitLink(" [SA-1](https://vendor.test/sa/1) ")
	if !ok || text != "SA-1" || url != "https://vendor.test/sa/1" {
		t.Errorf("SplitLink = %q %q %v", text, url, ok)
	}
	if _, _, ok := SplitLink("see [SA-1](u) here"); ok {
		t.Error("partial links are not full links")
	}
}
