package completion

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

// MetadataBonus is the maximum score metadata adds to a non-basic-info stage.
const MetadataBonus = 20

// Subsection is one ###..###### block of a stage, or a table row for the
// basic-info stage.
type Subsection struct {
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
}

// Todo is a missing or TODO-marked piece of content.
type Todo struct {
	Location string `json:"location"`
	Text     string `json:"text"`
}

// StageCompletion is the derived score of one stage.
type StageCompletion struct {
	StageNum         int          `json:"stage_num"`
	Title            string       `json:"title"`
	Completion       int          `json:"completion"`
	HasContent       bool         `json:"has_content"`
	HasMetadata      bool         `json:"has_metadata"`
	MetadataComplete bool         `json:"metadata_complete"`
	Subsections      []Subsection `json:"subsections"`
	Todos            []Todo       `json:"todos"`
	Present          bool         `json:"present"`
}

// Report holds every canonical stage's completion, in stage order.
type Report struct {
	Stages  []StageCompletion `json:"stages"`
	Overall int               `json:"overall"`
}

// Scorer computes completion using a placeholder vocabulary.
type Scorer struct {
	Vocab vocab.Vocabulary
}

// NewScorer returns a scorer bound to v.
func NewScorer(v vocab.Vocabulary) *Scorer {
	return &Scorer{Vocab: v}
}

// Score scores stages with the default vocabulary.
func Score(stages []stage.Stage) Report {
	return NewScorer(vocab.Default()).Score(stages)
}

var (
	subHeading   = regexp.MustCompile(`^#{3,6}\s+(.+)$`)
	separatorRow = regexp.MustCompile(`^\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?$`)
)

// Score returns one entry per canonical stage. Stages absent from the
// document score 0; when a stage number appears more than once the best
// scoring occurrence represents it.
func (s *Scorer) Score(stages []stage.Stage) Report {
	best := make(map[int]StageCompletion)
	for _, st := range stages {
		num, ok := st.Number()
		if !ok {
			continue
		}
		sc := s.ScoreStage(st)
		if prev, seen := best[num]; !seen || sc.Completion > prev.Completion {
			best[num] = sc
		}
	}

	rep := Report{Stages: make([]StageCompletion, 0, stage.Count)}
	total := 0
	for _, c := range stage.Canonical() {
		sc, ok := best[c.Num]
		if !ok {
			sc = StageCompletion{
				StageNum:    c.Num,
				Title:       c.Name,
				Subsections: []Subsection{},
				Todos:       []Todo{},
			}
		}
		total += sc.Completion
		rep.Stages = append(rep.Stages, sc)
	}
	rep.Overall = round(float64(total) / float64(stage.Count))
	return rep
}

// ScoreStage scores a single stage. Unrecognized stages are scored on the
// subsection path.
func (s *Scorer) ScoreStage(st stage.Stage) StageCompletion {
	num, _ := st.Number()
	sc := StageCompletion{
		StageNum:    num,
		Title:       st.Title,
		HasContent:  strings.TrimSpace(st.Content) != "",
		Subsections: []Subsection{},
		Todos:       []Todo{},
		Present:     true,
	}

	if num == stage.BasicInfo {
		if rows, header, ok := parseTable(st.Content); ok {
			s.scoreTable(&sc, rows, header)
			return sc
		}
	}

	s.scoreSubsections(&sc, st.Content)

	if num != stage.BasicInfo && len(st.Metadata.Items) > 0 {
		sc.HasMetadata = true
		filled := 0
		for _, it := range st.Metadata.Items {
			if !s.Vocab.IsPlaceholder(it.Value) {
				filled++
			}
		}
		total := len(st.Metadata.Items)
		sc.MetadataComplete = filled == total
		sc.Completion += round(MetadataBonus * float64(filled) / float64(total))
		if sc.Completion > 100 {
			sc.Completion = 100
		}
	}
	return sc
}

func (s *Scorer) scoreTable(sc *StageCompletion, rows [][]string, header []string) {
	complete := 0
	for _, row := range rows {
		rowDone := true
		for i, cell := range row {
			if cell != "" && !s.Vocab.HasTodo(cell) {
				continue
			}
			rowDone = false
			sc.Todos = append(sc.Todos, Todo{
				Location: row[0] + " - " + column(header, i),
				Text:     todoText(cell),
			})
		}
		if rowDone {
			complete++
		}
		sc.Subsections = append(sc.Subsections, Subsection{Title: row[0], Complete: rowDone})
	}
	if len(rows) > 0 {
		sc.Completion = round(100 * float64(complete) / float64(len(rows)))
	}
}

func column(header []string, i int) string {
	if i < len(header) && header[i] != "" {
		return header[i]
	}
	return "column " + strconv.Itoa(i+1)
}

func todoText(cell string) string {
	if cell == "" {
		return "empty"
	}
	return cell
}

func (s *Scorer) scoreSubsections(sc *StageCompletion, content string) {
	type block struct {
		title string
		body  []string
	}
	var blocks []*block
	var lead []string
	for _, line := range strings.Split(content, "\n") {
		if m := subHeading.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			blocks = append(blocks, &block{title: strings.TrimSpace(m[1])})
			continue
		}
		if len(blocks) == 0 {
			lead = append(lead, line)
			continue
		}
		cur := blocks[len(blocks)-1]
		cur.body = append(cur.body, line)
	}

	if len(blocks) == 0 {
		// no subsections: binary check over the whole block
		done := sc.HasContent && !s.Vocab.HasTodo(content)
		if done {
			sc.Completion = 100
		}
		s.collectTodos(sc, sc.Title, lead)
		return
	}

	s.collectTodos(sc, sc.Title, lead)
	complete := 0
	for _, b := range blocks {
		body := strings.Join(b.body, "\n")
		done := !s.Vocab.HasTodo(body)
		if done {
			complete++
		}
		sc.Subsections = append(sc.Subsections, Subsection{Title: b.title, Complete: done})
		s.collectTodos(sc, b.title, b.body)
	}
	sc.Completion = round(100 * float64(complete) / float64(len(blocks)))
}

func (s *Scorer) collectTodos(sc *StageCompletion, location string, lines []string) {
	for _, line := range lines {
		if s.Vocab.HasTodo(line) {
			sc.Todos = append(sc.Todos, Todo{Location: location, Text: strings.TrimSpace(line)})
		}
	}
}

// parseTable returns the data rows of the first pipe table in content,
// skipping the header and separator rows.
func parseTable(content string) (rows [][]string, header []string, ok bool) {
	var tableLines []string
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "|") {
			tableLines = append(tableLines, t)
			continue
		}
		if len(tableLines) > 0 {
			break
		}
	}
	if len(tableLines) < 2 || !separatorRow.MatchString(tableLines[1]) {
		return nil, nil, false
	}
	header = splitRow(tableLines[0])
	for _, l := range tableLines[2:] {
		if separatorRow.MatchString(l) {
			continue
		}
		rows = append(rows, splitRow(l))
	}
	return rows, header, true
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func round(f float64) int {
	return int(math.Round(f))
}
