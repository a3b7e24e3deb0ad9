package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kokistudios/vulnlife/internal/artifact"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/store"
	"github.com/kokistudios/vulnlife/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor, verbose bool

	rootCmd := &cobra.Command{
		Use:   "vulnlife",
		Short: "vulnlife: vulnerability lifecycle reports",
		Long: "Write vulnerability research reports in markdown and see them as a lifecycle timeline, " +
			"exploitability cards, threat intelligence, analysis, and a completion score.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
			ui.SetVerbose(verbose)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "report", Title: "Report Commands:"},
		&cobra.Group{ID: "share", Title: "Sharing Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	for _, c := range []*cobra.Command{newCmd(), serveCmd(), renderCmd(), stagesCmd(), timelineCmd(), scoreCmd(), validateCmd(), previewCmd(), watchCmd()} {
		c.GroupID = "report"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{exportCmd(), importCmd(), gistCmd(), draftCmd()} {
		c.GroupID = "share"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{initCmd(), configCmd(), doctorCmd()} {
		c.GroupID = "config"
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(mcpServeCmd())

	return rootCmd
}

// loadStore requires an initialized home.
func loadStore() (*store.Store, error) {
	s, err := store.Load(store.Home())
	if err != nil {
		return nil, fmt.Errorf("vulnlife not initialized, run 'vulnlife init' first: %w", err)
	}
	return s, nil
}

// openStore falls back to default configuration when the home has not been
// initialized, so read-only commands work out of the box.
func openStore() (*store.Store, error) {
	return store.Open(store.Home())
}

func newRenderer(s *store.Store, order string) *render.Renderer {
	policy := s.Config.Policy()
	if order != "" {
		policy = parseOrder(order)
	}
	r := render.New(s.Config.Vocab(), policy, ui.Logger)
	if style := s.Config.Editor.Style; style != "" {
		r.Highlighter = render.NewChromaHighlighter(style)
	}
	return r
}

// loadReport reads a report file and a renderer for it.
func loadReport(path, order string) (*artifact.Report, *render.Renderer, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	rep, err := artifact.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return rep, newRenderer(s, order), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func reportName(path string) string {
	return store.DraftName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}
