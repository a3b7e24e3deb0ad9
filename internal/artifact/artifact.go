package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vulnlife/internal/stage"
)

// ReportMeta contains the YAML front matter of a lifecycle report.
type ReportMeta struct {
	ID       string    `yaml:"id,omitempty"`
	Title    string    `yaml:"title,omitempty"`
	CVE      string    `yaml:"cve,omitempty"`
	Product  string    `yaml:"product,omitempty"`
	Severity string    `yaml:"severity,omitempty"` // low, medium, high, critical
	Author   string    `yaml:"author,omitempty"`
	Tags     []string  `yaml:"tags,omitempty"`
	Updated  time.Time `yaml:"updated,omitempty"`
}

// Report is a parsed lifecycle report file.
type Report struct {
	Meta     ReportMeta
	Body     string
	Raw      string
	FilePath string
}

// Parse splits a markdown document into YAML front matter and body.
// Front matter is delimited by --- lines at the start of the document.
func Parse(raw []byte) (*Report, error) {
	content := string(raw)
	trimmed := strings.TrimSpace(content)

	if !strings.HasPrefix(trimmed, "---") {
		return &Report{Body: content, Raw: content}, nil
	}

	rest := strings.TrimLeft(trimmed[3:], " \t")
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	}

	var fmRaw, body string
	if strings.HasPrefix(rest, "---") {
		body = rest[3:]
	} else {
		endIdx := strings.Index(rest, "\n---")
		if endIdx == -1 {
			return nil, fmt.Errorf("unterminated front matter: missing closing ---")
		}
		fmRaw = rest[:endIdx]
		body = rest[endIdx+4:]
	}
	body = strings.TrimLeft(body, "\r\n")

	var meta ReportMeta
	if err := yaml.Unmarshal([]byte(fmRaw), &meta); err != nil {
		return nil, fmt.Errorf("invalid front matter YAML: %w", err)
	}

	return &Report{Meta: meta, Body: body, Raw: content}, nil
}

// Text returns the full document: the body with front matter prepended when
// any metadata is set.
func (r *Report) Text() (string, error) {
	if isZero(r.Meta) {
		return r.Body, nil
	}
	fm, err := yaml.Marshal(r.Meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(r.Body)
	return buf.String(), nil
}

func isZero(m ReportMeta) bool {
	return m.ID == "" && m.Title == "" && m.CVE == "" && m.Product == "" &&
		m.Severity == "" && m.Author == "" && len(m.Tags) == 0 && m.Updated.IsZero()
}

// Title returns the front matter title, falling back to the body's H1.
func (r *Report) Title() string {
	if r.Meta.Title != "" {
		return r.Meta.Title
	}
	return stage.ExtractTitle(r.Body)
}

// Validate returns the canonical stages missing from the report body,
// in canonical order.
func Validate(r *Report) []stage.CanonicalStage {
	if r == nil {
		return stage.Canonical()
	}
	present := make(map[int]bool)
	for _, s := range stage.ParseLifecycleStages(r.Body) {
		if n, ok := s.Number(); ok {
			present[n] = true
		}
	}
	var missing []stage.CanonicalStage
	for _, c := range stage.Canonical() {
		if !present[c.Num] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Store writes a report to path, creating parent directories as needed.
func Store(path string, r *Report) error {
	text, err := r.Text()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	r.FilePath = path
	r.Raw = text
	return nil
}

// Load reads and parses a report file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	r.FilePath = path
	return r, nil
}
