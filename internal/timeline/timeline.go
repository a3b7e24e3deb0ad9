package timeline

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

// Policy selects how time nodes are ordered.
type Policy string

const (
	// PolicyInsertion keeps nodes in order of first appearance in the document.
	PolicyInsertion Policy = "insertion"
	// PolicyBasicInfoFirst hoists nodes holding the basic-info stage, then
	// orders dated nodes chronologically, then undated nodes in document order.
	PolicyBasicInfoFirst Policy = "basic-info-first"
)

// ParsePolicy maps a config string to a Policy. Unknown values yield PolicyInsertion.
func ParsePolicy(s string) Policy {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyBasicInfoFirst, "chronological":
		return PolicyBasicInfoFirst
	default:
		return PolicyInsertion
	}
}

// TimeInfo is one time-bearing bullet of a stage.
type TimeInfo struct {
	Label        string `json:"label"`
	Value        string `json:"value"`
	Timestamp    int64  `json:"timestamp,omitempty"` // epoch millis
	HasTimestamp bool   `json:"has_timestamp"`
}

// TimedStage is a stage placed on the timeline.
type TimedStage struct {
	Stage      stage.Stage `json:"stage"`
	TimeInfo   []TimeInfo  `json:"time_info"`
	Primary    int64       `json:"primary_timestamp,omitempty"`
	HasPrimary bool        `json:"has_primary"`
}

// Node is a cluster of stages sharing a primary timestamp, or sharing the
// lack of one.
type Node struct {
	Key       string       `json:"key"`
	Timestamp int64        `json:"timestamp,omitempty"`
	Dated     bool         `json:"dated"`
	Stages    []TimedStage `json:"stages"`
}

// Time returns the node timestamp in local time.
func (n Node) Time() time.Time {
	return time.UnixMilli(n.Timestamp)
}

// UndatedLabel is shown wherever a node or stage carries no date.
const UndatedLabel = "未标注时间"

// Label renders the node date for display.
func (n Node) Label() string {
	if !n.Dated {
		return UndatedLabel
	}
	return n.Time().Format("2006-01-02")
}

// Clusterer extracts timestamps and groups stages.
type Clusterer struct {
	Vocab  vocab.Vocabulary
	Policy Policy
}

// NewClusterer returns a clusterer with the given vocabulary and ordering policy.
func NewClusterer(v vocab.Vocabulary, p Policy) *Clusterer {
	return &Clusterer{Vocab: v, Policy: p}
}

var defaultClusterer = NewClusterer(vocab.Default(), PolicyInsertion)

var (
	dashDate    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	slashDate   = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	dotDate     = regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d{1,2})`)
	compactDate = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

// genericLayouts are tried after the numeric patterns.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006年1月2日",
	"2006年01月02日",
	"2006年1月",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
	"Jan 2006",
}

// ParseDate parses a date string into epoch millis in local time. It never
// panics; ok is false when nothing matched.
func ParseDate(s string) (int64, bool) {
	return defaultClusterer.ParseDate(s)
}

// ParseDate parses s using c's sentinel vocabulary.
func (c *Clusterer) ParseDate(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || c.Vocab.HasSentinel(s) {
		return 0, false
	}
	s = stage.StripParenthetical(s)
	for _, re := range []*regexp.Regexp{dashDate, slashDate, dotDate, compactDate} {
		if m := re.FindStringSubmatch(s); m != nil {
			if ts, ok := localDate(m[1], m[2], m[3]); ok {
				return ts, true
			}
		}
	}
	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func localDate(ys, ms, ds string) (int64, bool) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
	if t.Month() != time.Month(m) {
		// 2024-02-31 and friends
		return 0, false
	}
	return t.UnixMilli(), true
}

// ExtractTimeInfo returns every time bullet in content.
func ExtractTimeInfo(content string) []TimeInfo {
	return defaultClusterer.ExtractTimeInfo(content)
}

// ExtractTimeInfo scans all label/value bullets whose label names a time.
func (c *Clusterer) ExtractTimeInfo(content string) []TimeInfo {
	out := []TimeInfo{}
	for _, line := range strings.Split(content, "\n") {
		label, value, ok := stage.MatchBullet(line)
		if !ok || !c.Vocab.IsTimeLabel(label) {
			continue
		}
		if c.Vocab.HasSentinel(value) {
			out = append(out, TimeInfo{Label: label, Value: c.pending()})
			continue
		}
		value = stage.StripParenthetical(value)
		ti := TimeInfo{Label: label, Value: value}
		ti.Timestamp, ti.HasTimestamp = c.ParseDate(value)
		out = append(out, ti)
	}
	return out
}

func (c *Clusterer) pending() string {
	if c.Vocab.PendingMarker != "" {
		return c.Vocab.PendingMarker
	}
	return "pending"
}

// PrimaryTimestamp returns the earliest timestamp found in a stage.
func PrimaryTimestamp(s stage.Stage) (int64, bool) {
	return primaryOf(defaultClusterer.ExtractTimeInfo(s.Content))
}

func primaryOf(infos []TimeInfo) (int64, bool) {
	var min int64
	found := false
	for _, ti := range infos {
		if !ti.HasTimestamp {
			continue
		}
		if !found || ti.Timestamp < min {
			min = ti.Timestamp
			found = true
		}
	}
	return min, found
}

// GroupStagesByTime groups stages with the default vocabulary and the given policy.
func GroupStagesByTime(stages []stage.Stage, p Policy) []Node {
	return NewClusterer(vocab.Default(), p).Group(stages)
}

// NodeKey returns the grouping key of a stage on the timeline.
func NodeKey(s stage.Stage, ts int64, dated bool) string {
	if dated {
		return strconv.FormatInt(ts, 10)
	}
	if n, ok := s.Number(); ok {
		return fmt.Sprintf("no-time-%d", n)
	}
	return "no-time-unknown"
}

// Group clusters stages by primary timestamp. Every input stage lands in
// exactly one node.
func (c *Clusterer) Group(stages []stage.Stage) []Node {
	index := make(map[string]int)
	nodes := []Node{}
	for _, s := range stages {
		infos := c.ExtractTimeInfo(s.Content)
		ts, dated := primaryOf(infos)
		key := NodeKey(s, ts, dated)
		i, ok := index[key]
		if !ok {
			i = len(nodes)
			index[key] = i
			nodes = append(nodes, Node{Key: key, Timestamp: ts, Dated: dated})
		}
		nodes[i].Stages = append(nodes[i].Stages, TimedStage{
			Stage:      s,
			TimeInfo:   infos,
			Primary:    ts,
			HasPrimary: dated,
		})
	}
	if c.Policy == PolicyBasicInfoFirst {
		return basicInfoFirst(nodes)
	}
	return nodes
}

func basicInfoFirst(nodes []Node) []Node {
	var basic, dated, undated []Node
	for _, n := range nodes {
		switch {
		case n.hasStage(stage.BasicInfo):
			basic = append(basic, n)
		case n.Dated:
			dated = append(dated, n)
		default:
			undated = append(undated, n)
		}
	}
	// equal timestamps keep document order
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Timestamp < dated[j].Timestamp })
	out := make([]Node, 0, len(nodes))
	out = append(out, basic...)
	out = append(out, dated...)
	return append(out, undated...)
}

func (n Node) hasStage(num int) bool {
	for _, ts := range n.Stages {
		if ts.Stage.Is(num) {
			return true
		}
	}
	return false
}

// StageCount returns the number of stages across nodes.
func StageCount(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total += len(n.Stages)
	}
	return total
}
