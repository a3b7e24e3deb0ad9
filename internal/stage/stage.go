package stage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kokistudios/vulnlife/internal/vocab"
)

// DefaultTitle is used when a document has no top-level heading.
const DefaultTitle = "Vulnerability Research Report"

// Heading is a sub-heading found inside a stage body.
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Line  int    `json:"line"`
}

// MetadataItem is one "- **label**: value" bullet from the top of a stage.
type MetadataItem struct {
	Label string         `json:"label"`
	Value string         `json:"value"`
	Type  vocab.ItemType `json:"type"`
	Icon  string         `json:"icon,omitempty"`
}

// Metadata is the leading bullet block of a stage.
type Metadata struct {
	Items []MetadataItem `json:"items"`
}

// Stage is one "##" section of a lifecycle report.
type Stage struct {
	Title     string    `json:"title"`
	Num       *int      `json:"stage_num"` // nil when the heading matches no canonical stage
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Headings  []Heading `json:"headings"`
	StartLine int       `json:"start_line"` // 1-based; 0 when unknown
}

// Number returns the canonical stage number and whether one was resolved.
func (s Stage) Number() (int, bool) {
	if s.Num == nil {
		return 0, false
	}
	return *s.Num, true
}

// Is reports whether the stage resolved to canonical stage n.
func (s Stage) Is(n int) bool {
	num, ok := s.Number()
	return ok && num == n
}

var (
	stageHeading   = regexp.MustCompile(`^##\s+(.+)$`)
	titleHeading   = regexp.MustCompile(`^#\s+(.+)$`)
	anyHeading     = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	subHeading     = regexp.MustCompile(`^#{3,}\s+`)
	leadingNumeral = regexp.MustCompile(`^(\d+)\.?\s*.+$`)
	bulletLine     = regexp.MustCompile(`^-\s*\*\*([^*]+)\*\*[：:]\s*(.+)$`)
	bulletLineAlt  = regexp.MustCompile(`^-\s*\*\*([^*]+?)[：:]\*\*\s*(.+)$`)
	trailingParen  = regexp.MustCompile(`\s*[（(][^（()）]*[）)]\s*$`)
)

// MatchBullet parses a label/value bullet line. Both the ASCII and the
// full-width colon are accepted, inside or after the bold label. The bullet
// must start the line; indented bullets belong to a nested list.
func MatchBullet(line string) (label, value string, ok bool) {
	line = strings.TrimRight(line, "\r")
	m := bulletLine.FindStringSubmatch(line)
	if m == nil {
		m = bulletLineAlt.FindStringSubmatch(line)
	}
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// StripParenthetical removes a trailing "(...)" or "（...）" annotation.
func StripParenthetical(value string) string {
	return strings.TrimSpace(trailingParen.ReplaceAllString(value, ""))
}

// IsFrontMatterDelimiter reports whether line toggles front matter.
func IsFrontMatterDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == "---"
}

// Parser splits lifecycle reports into stages.
type Parser struct {
	Vocab vocab.Vocabulary
}

// NewParser returns a parser using v for metadata classification.
func NewParser(v vocab.Vocabulary) *Parser {
	return &Parser{Vocab: v}
}

var defaultParser = NewParser(vocab.Default())

// ExtractStageNumber resolves a stage heading to a canonical stage number:
// a leading numeral 1-9 first, then the keyword table.
func ExtractStageNumber(title string) *int {
	title = strings.TrimSpace(title)
	if m := leadingNumeral.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= Count {
			return &n
		}
	}
	if n, ok := keywordStage(title); ok {
		return &n
	}
	return nil
}

// StageNumber resolves title like ExtractStageNumber, then tries the
// vocabulary's stage aliases.
func (p *Parser) StageNumber(title string) *int {
	if n := ExtractStageNumber(title); n != nil {
		return n
	}
	if n, ok := p.Vocab.StageAlias(strings.TrimSpace(title)); ok {
		return &n
	}
	return nil
}

// ParseLifecycleStages parses markdown with the default vocabulary.
func ParseLifecycleStages(markdown string) []Stage {
	return defaultParser.Parse(markdown)
}

// ExtractStageMetadata extracts metadata with the default vocabulary.
func ExtractStageMetadata(content string) Metadata {
	return defaultParser.ExtractMetadata(content)
}

// scanner is the line state machine behind Parse. Front matter is tracked
// separately from the stage state because a "---" line toggles it anywhere.
type scanner struct {
	p       *Parser
	inFront bool
	current *Stage
	lines   []string
	stages  []Stage
}

func (sc *scanner) flush() {
	if sc.current == nil {
		return
	}
	st := *sc.current
	st.Content = strings.TrimSpace(strings.Join(sc.lines, "\n"))
	st.Metadata = sc.p.ExtractMetadata(st.Content)
	if st.Headings == nil {
		st.Headings = []Heading{}
	}
	sc.stages = append(sc.stages, st)
	sc.current = nil
	sc.lines = nil
}

func (sc *scanner) line(raw string, lineNo int) {
	if IsFrontMatterDelimiter(raw) {
		sc.inFront = !sc.inFront
		return
	}
	if sc.inFront {
		return
	}
	line := strings.TrimRight(raw, "\r")
	if m := stageHeading.FindStringSubmatch(line); m != nil {
		sc.flush()
		title := strings.TrimSpace(m[1])
		sc.current = &Stage{
			Title:     title,
			Num:       sc.p.StageNumber(title),
			StartLine: lineNo,
		}
		return
	}
	if sc.current == nil {
		// document title and preamble
		return
	}
	if m := anyHeading.FindStringSubmatch(line); m != nil {
		sc.current.Headings = append(sc.current.Headings, Heading{
			Level: len(m[1]),
			Title: strings.TrimSpace(m[2]),
			Line:  lineNo,
		})
	}
	sc.lines = append(sc.lines, line)
}

// Parse splits markdown into stages in source order. Documents without any
// "##" heading yield an empty slice; callers fall back to the raw view.
func (p *Parser) Parse(markdown string) []Stage {
	if markdown == "" {
		return []Stage{}
	}
	sc := &scanner{p: p}
	for i, line := range strings.Split(markdown, "\n") {
		sc.line(line, i+1)
	}
	sc.flush()
	if sc.stages == nil {
		return []Stage{}
	}
	return sc.stages
}

// ExtractTitle returns the first "#" heading outside front matter.
func ExtractTitle(markdown string) string {
	inFront := false
	for _, raw := range strings.Split(markdown, "\n") {
		if IsFrontMatterDelimiter(raw) {
			inFront = !inFront
			continue
		}
		if inFront {
			continue
		}
		if m := titleHeading.FindStringSubmatch(strings.TrimRight(raw, "\r")); m != nil {
			if t := strings.TrimSpace(m[1]); t != "" {
				return t
			}
		}
	}
	return DefaultTitle
}

// ExtractMetadata reads the leading bullet block of a stage body. Scanning
// stops for good at the first level-3+ heading.
func (p *Parser) ExtractMetadata(content string) Metadata {
	md := Metadata{Items: []MetadataItem{}}
	for _, line := range strings.Split(content, "\n") {
		if subHeading.MatchString(strings.TrimSpace(line)) {
			break
		}
		label, value, ok := MatchBullet(line)
		if !ok || label == "" {
			continue
		}
		if p.Vocab.IsDropped(value) {
			continue
		}
		if _, _, isLink := vocab.SplitLink(value); !isLink {
			value = StripParenthetical(value)
			if p.Vocab.IsDropped(value) {
				continue
			}
		}
		t := p.Vocab.ClassifyLabel(label, value)
		md.Items = append(md.Items, MetadataItem{
			Label: label,
			Value: value,
			Type:  t,
			Icon:  vocab.Icon(t),
		})
	}
	return md
}

// MetadataLineCount returns how many leading lines of content belong to the
// metadata block (bullets and blank lines before the first other line).
func MetadataLineCount(content string) int {
	lines := strings.Split(content, "\n")
	n := 0
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if _, _, ok := MatchBullet(line); ok {
			n = i + 1
			continue
		}
		break
	}
	return n
}

// Body returns the stage content without its leading metadata bullets.
func (s Stage) Body() string {
	n := MetadataLineCount(s.Content)
	if n == 0 {
		return s.Content
	}
	lines := strings.Split(s.Content, "\n")
	return strings.TrimSpace(strings.Join(lines[n:], "\n"))
}
