package vocab

import (
	"regexp"
	"sort"
	"strings"
)

// ItemType classifies a metadata bullet by what its value holds.
type ItemType string

const (
	TypeTime    ItemType = "time"
	TypePerson  ItemType = "person"
	TypeVersion ItemType = "version"
	TypeLink    ItemType = "link"
	TypeText    ItemType = "text"
)

// Vocabulary holds the keyword and placeholder lists used by the parsing and
// scoring heuristics. Every list can be extended from config.yaml.
type Vocabulary struct {
	// SentinelPhrases mark a value as "not filled in yet" when contained anywhere in it.
	SentinelPhrases []string `yaml:"sentinel_phrases,omitempty"`
	// EmptyValues are whole values treated as empty (compared case-insensitively).
	EmptyValues []string `yaml:"empty_values,omitempty"`

	TimeKeywords    []string `yaml:"time_keywords,omitempty"`
	PersonKeywords  []string `yaml:"person_keywords,omitempty"`
	VersionKeywords []string `yaml:"version_keywords,omitempty"`
	LinkKeywords    []string `yaml:"link_keywords,omitempty"`

	// TimeLabelMarkers select which bullets feed the timeline.
	TimeLabelMarkers []string `yaml:"time_label_markers,omitempty"`

	PlaceholderRoles  []string `yaml:"placeholder_roles,omitempty"`
	PlaceholderDates  []string `yaml:"placeholder_dates,omitempty"`
	ExampleDomains    []string `yaml:"example_domains,omitempty"`
	PlaceholderHashes []string `yaml:"placeholder_hashes,omitempty"`

	TodoMarker    string `yaml:"todo_marker,omitempty"`
	PendingMarker string `yaml:"pending_marker,omitempty"`

	// StageAliases maps extra heading fragments to stage numbers, e.g.
	// "patch: 5". Empty by default: only canonical names are recognized.
	StageAliases map[string]int `yaml:"stage_aliases,omitempty"`
}

// Default returns the built-in vocabulary.
func Default() Vocabulary {
	return Vocabulary{
		SentinelPhrases: []string{
			"待编辑", "待填写", "待补充", "待完善", "需要编辑",
			"needs editing", "to be filled", "to fill in", "fill in later",
		},
		EmptyValues: []string{"", "...", "…", "n/a", "na", "tbd", "-", "无"},
		TimeKeywords: []string{
			"时间", "日期", "time", "date", "when",
		},
		PersonKeywords: []string{
			"发现者", "报告者", "提交者", "研究员", "作者", "负责人", "维护者", "致谢",
			"reporter", "researcher", "author", "finder", "discoverer", "credit", "owner", "maintainer",
		},
		VersionKeywords: []string{
			"版本", "version", "affected", "fixed in", "release",
		},
		LinkKeywords: []string{
			"链接", "地址", "参考", "公告", "补丁", "提交",
			"link", "url", "reference", "advisory", "commit", "patch", "poc",
		},
		TimeLabelMarkers: []string{"时间", "time"},
		PlaceholderRoles: []string{
			"研究员", "安全研究员", "发现者", "报告者", "作者", "姓名", "某某", "张三", "李四",
			"researcher", "security researcher", "your name", "name", "author", "reporter", "john doe",
		},
		PlaceholderDates: []string{"yyyy-mm-dd", "yyyy/mm/dd", "2000-01-01", "2000-1-1", "2000/01/01"},
		ExampleDomains:   []string{"example.com", "example.org", "example.net"},
		PlaceholderHashes: []string{
			"abc123", "abcdef", "abc1234", "abcdef1", "abcdef123456", "a1b2c3d", "1234567",
			"0000000", "deadbeef", "xxxxxxx",
		},
		TodoMarker:    "todo:",
		PendingMarker: "pending",
	}
}

// Merge returns v with the entries of o appended to each list. Duplicate
// entries are dropped and order is preserved. Scalar markers in o replace v's
// when set.
func (v Vocabulary) Merge(o Vocabulary) Vocabulary {
	out := v
	out.SentinelPhrases = mergeList(v.SentinelPhrases, o.SentinelPhrases)
	out.EmptyValues = mergeList(v.EmptyValues, o.EmptyValues)
	out.TimeKeywords = mergeList(v.TimeKeywords, o.TimeKeywords)
	out.PersonKeywords = mergeList(v.PersonKeywords, o.PersonKeywords)
	out.VersionKeywords = mergeList(v.VersionKeywords, o.VersionKeywords)
	out.LinkKeywords = mergeList(v.LinkKeywords, o.LinkKeywords)
	out.TimeLabelMarkers = mergeList(v.TimeLabelMarkers, o.TimeLabelMarkers)
	out.PlaceholderRoles = mergeList(v.PlaceholderRoles, o.PlaceholderRoles)
	out.PlaceholderDates = mergeList(v.PlaceholderDates, o.PlaceholderDates)
	out.ExampleDomains = mergeList(v.ExampleDomains, o.ExampleDomains)
	out.PlaceholderHashes = mergeList(v.PlaceholderHashes, o.PlaceholderHashes)
	if o.TodoMarker != "" {
		out.TodoMarker = o.TodoMarker
	}
	if o.PendingMarker != "" {
		out.PendingMarker = o.PendingMarker
	}
	if len(v.StageAliases)+len(o.StageAliases) > 0 {
		out.StageAliases = make(map[string]int, len(v.StageAliases)+len(o.StageAliases))
		for _, m := range []map[string]int{v.StageAliases, o.StageAliases} {
			for k, n := range m {
				out.StageAliases[strings.ToLower(strings.TrimSpace(k))] = n
			}
		}
	}
	return out
}

// StageAlias resolves title through StageAliases. Longer fragments are tried
// first so "patch notes" can win over "patch"; aliases outside 1-9 are ignored.
func (v Vocabulary) StageAlias(title string) (int, bool) {
	if len(v.StageAliases) == 0 {
		return 0, false
	}
	keys := make([]string, 0, len(v.StageAliases))
	for k := range v.StageAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	lower := strings.ToLower(title)
	for _, k := range keys {
		n := v.StageAliases[k]
		if k == "" || n < 1 || n > 9 {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			return n, true
		}
	}
	return 0, false
}

func mergeList(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			k := strings.ToLower(s)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

// IsEmptyValue reports whether value is one of the whole-value empties
// ("", "...", "N/A", "TBD", ...).
func (v Vocabulary) IsEmptyValue(value string) bool {
	t := strings.ToLower(strings.TrimSpace(value))
	for _, e := range v.EmptyValues {
		if t == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// HasSentinel reports whether value contains a "not filled in" phrase.
func (v Vocabulary) HasSentinel(value string) bool {
	return containsAny(strings.ToLower(value), v.SentinelPhrases)
}

// IsDropped reports whether a metadata value should not be stored at all.
func (v Vocabulary) IsDropped(value string) bool {
	return v.IsEmptyValue(value) || v.HasSentinel(value)
}

// HasTodo reports whether text carries the TODO marker (case-insensitive).
func (v Vocabulary) HasTodo(text string) bool {
	marker := v.TodoMarker
	if marker == "" {
		marker = "todo:"
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(marker))
}

// IsTimeLabel reports whether a bullet label names a point in time for the timeline.
func (v Vocabulary) IsTimeLabel(label string) bool {
	return containsAny(strings.ToLower(label), v.TimeLabelMarkers)
}

var (
	urlPattern      = regexp.MustCompile(`(?i)\bhttps?://\S+`)
	mdLinkPattern   = regexp.MustCompile(`^\[([^\]]*)\]\(([^)]*)\)$`)
	versionXYZ      = regexp.MustCompile(`(?i)(^|[^a-z0-9])v?[xyz](\.[xyz0-9]){1,3}([^a-z0-9]|$)`)
	placeholderID   = regexp.MustCompile(`(?i)\b(?:sa|cve|cwe|ghsa)-(?:(?:yyyy|\d{4})-)?(?:x{2,}|n{4,}|yyyy)`)
	yearPlaceholder = regexp.MustCompile(`(?i)\byyyy[-/.]mm[-/.]dd\b`)
	year2000Default = regexp.MustCompile(`^2000[-/.]0?1[-/.]0?1\b`)
	onlyHexLetters  = regexp.MustCompile(`^[0-9a-f]{6,40}$`)
)

// IsURL reports whether value contains an http(s) URL.
func IsURL(value string) bool {
	return urlPattern.MatchString(value)
}

// SplitLink splits a full markdown link "[text](url)". ok is false when the
// value is not exactly one link.
func SplitLink(value string) (text, url string, ok bool) {
	m := mdLinkPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsPlaceholder reports whether a metadata value is unfilled template
// boilerplate. Markdown links are checked on both their text and their URL.
func (v Vocabulary) IsPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	if text, url, ok := SplitLink(value); ok {
		return v.isPlaceholderText(text) || v.isPlaceholderText(url)
	}
	return v.isPlaceholderText(value)
}

func (v Vocabulary) isPlaceholderText(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	if v.IsEmptyValue(lower) || v.HasSentinel(lower) {
		return true
	}
	for _, role := range v.PlaceholderRoles {
		if lower == strings.ToLower(role) {
			return true
		}
	}
	for _, d := range v.PlaceholderDates {
		if lower == strings.ToLower(d) {
			return true
		}
	}
	if yearPlaceholder.MatchString(lower) || year2000Default.MatchString(lower) {
		return true
	}
	if versionXYZ.MatchString(lower) || placeholderID.MatchString(lower) {
		return true
	}
	if containsAny(lower, v.ExampleDomains) {
		return true
	}
	for _, h := range v.PlaceholderHashes {
		h = strings.ToLower(h)
		if lower == h {
			return true
		}
		// commit URLs ending in a placeholder hash
		if onlyHexLetters.MatchString(h) && strings.HasSuffix(lower, "/"+h) {
			return true
		}
	}
	return false
}

// ClassifyLabel infers the item type from the label, falling back to a URL
// check on the value.
func (v Vocabulary) ClassifyLabel(label, value string) ItemType {
	l := strings.ToLower(label)
	switch {
	case containsAny(l, v.TimeKeywords):
		return TypeTime
	case containsAny(l, v.PersonKeywords):
		return TypePerson
	case containsAny(l, v.VersionKeywords):
		return TypeVersion
	case containsAny(l, v.LinkKeywords):
		return TypeLink
	}
	if _, _, ok := SplitLink(value); ok || IsURL(value) {
		return TypeLink
	}
	return TypeText
}

// Icon returns the glyph shown next to an item of type t.
func Icon(t ItemType) string {
	switch t {
	case TypeTime:
		return "🕒"
	case TypePerson:
		return "👤"
	case TypeVersion:
		return "📦"
	case TypeLink:
		return "🔗"
	default:
		return "📝"
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
