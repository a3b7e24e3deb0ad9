package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger is the package-level structured logger.
var Logger *log.Logger

// Out is where human-facing messages go. Tables and rendered documents use
// stdout so they can be piped.
var Out io.Writer = os.Stderr

var (
	headerStyle  lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	promptStyle  lipgloss.Style
	accentStyle  lipgloss.Style
	bannerStyle  lipgloss.Style
)

// Init sets up color detection, lipgloss styles, and the structured logger.
// Call this once at CLI startup.
func Init(noColorFlag bool) {
	noColor := noColorFlag || os.Getenv("NO_COLOR") != ""

	// Pre-set dark background to prevent the termenv OSC query
	lipgloss.SetHasDarkBackground(true)

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.NewOutput(os.Stderr).EnvColorProfile())
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	bannerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("160")).
		PaddingLeft(1).
		PaddingRight(1)

	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "vulnlife",
	})
	if noColor {
		Logger.SetStyles(log.DefaultStyles())
	}
}

// SetVerbose switches the logger to debug level.
func SetVerbose(on bool) {
	if Logger == nil {
		return
	}
	if on {
		Logger.SetLevel(log.DebugLevel)
	} else {
		Logger.SetLevel(log.InfoLevel)
	}
}

func Bold(s string) string   { return boldStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }
func Red(s string) string    { return errorStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Yellow(s string) string { return warningStyle.Render(s) }

// Banner renders a small branded box for a command.
func Banner(command, subtitle string) {
	brand := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160")).Render("vulnlife")
	content := fmt.Sprintf("%s  %s", brand, accentStyle.Render(strings.ToUpper(command)))
	if subtitle != "" {
		content += "\n" + dimStyle.Render(subtitle)
	}
	fmt.Fprintln(Out)
	fmt.Fprintln(Out, bannerStyle.Render(content))
	fmt.Fprintln(Out)
}

// Status prints a styled status message.
func Status(msg string) {
	fmt.Fprintf(Out, "%s %s\n", accentStyle.Render("▸"), msg)
}

// Warning prints a styled warning message.
func Warning(msg string) {
	fmt.Fprintf(Out, "%s %s\n", warningStyle.Render("⚠"), msg)
}

// Error prints a styled error message.
func Error(msg string) {
	fmt.Fprintf(Out, "%s %s\n", errorStyle.Render("✗"), msg)
}

// Info prints a styled informational message.
func Info(msg string) {
	fmt.Fprintf(Out, "%s %s\n", accentStyle.Render("▸"), msg)
}

// Success prints a green check with a message.
func Success(msg string) {
	fmt.Fprintf(Out, "%s %s\n", successStyle.Render("✓"), msg)
}

// Detail prints an indented key-value detail line.
func Detail(key, value string) {
	fmt.Fprintf(Out, "%s %s\n", dimStyle.Render("  "+key), value)
}

// KeyValue prints a bold key with a value.
func KeyValue(key, value string) {
	fmt.Fprintf(Out, "  %s  %s\n", boldStyle.Render(key), value)
}

// SectionHeader prints a styled section divider with a label.
func SectionHeader(label string) {
	fmt.Fprintf(Out, "\n%s\n\n", headerStyle.Render(fmt.Sprintf("── %s ──", label)))
}

// EmptyState prints a styled message for empty results.
func EmptyState(msg string) {
	fmt.Fprintf(Out, "  %s\n", dimStyle.Render(msg))
}

// Table prints a formatted table with headers and rows to stdout.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, boldStyle.Render(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// Percent renders a completion percentage colored by band: green when
// complete, yellow when started, red when untouched.
func Percent(p int) string {
	s := fmt.Sprintf("%3d%%", p)
	switch {
	case p >= 100:
		return successStyle.Render(s)
	case p > 0:
		return warningStyle.Render(s)
	default:
		return errorStyle.Render(s)
	}
}

// ProgressBar renders a fixed-width bar for p percent.
func ProgressBar(p, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	filled := p * width / 100
	return successStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// confirmModel is a bubbletea model for y/n confirmation.
type confirmModel struct {
	prompt   string
	cursor   int // 0 = yes, 1 = no
	accepted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.accepted = true
		return m, tea.Quit
	case "n", "N", "ctrl+c", "esc":
		m.accepted = false
		return m, tea.Quit
	case "left", "h":
		m.cursor = 0
	case "right", "l":
		m.cursor = 1
	case "enter", " ":
		m.accepted = m.cursor == 0
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	yes, no := dimStyle.Render("  Yes "), dimStyle.Render("  No  ")
	if m.cursor == 0 {
		yes = successStyle.Render("▸ Yes ")
	} else {
		no = errorStyle.Render("▸ No  ")
	}
	return fmt.Sprintf("%s\n\n  %s  %s\n\n%s",
		promptStyle.Render(m.prompt),
		yes, no,
		dimStyle.Render("  ←/→ to select • enter to confirm • y/n for quick select"))
}

// Confirm prompts the user with a yes/no question and returns the response.
func Confirm(prompt string) (bool, error) {
	p := tea.NewProgram(confirmModel{prompt: prompt}, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	fmt.Fprintln(os.Stderr)
	return result.(confirmModel).accepted, nil
}

// Spinner displays an animated spinner with a message on stderr.
// Stop is safe to call multiple times.
type Spinner struct {
	msg      string
	stop     chan struct{}
	done     sync.WaitGroup
	stopOnce sync.Once
}

// NewSpinner starts a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	s := &Spinner{msg: msg, stop: make(chan struct{})}
	s.done.Add(1)
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer s.done.Done()
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		fmt.Fprintf(os.Stderr, "\r%s %s", accentStyle.Render(frames[i%len(frames)]), dimStyle.Render(s.msg))
		select {
		case <-s.stop:
			fmt.Fprint(os.Stderr, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the spinner and clears its line.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.done.Wait()
}
