package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokistudios/vulnlife/internal/artifact"
	"github.com/kokistudios/vulnlife/internal/completion"
	"github.com/kokistudios/vulnlife/internal/editor"
	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/stage"
	"github.com/kokistudios/vulnlife/internal/timeline"
	"github.com/kokistudios/vulnlife/internal/ui"
)

func parseOrder(s string) timeline.Policy {
	return timeline.ParsePolicy(s)
}

func newCmd() *cobra.Command {
	var title string
	var force bool
	cmd := &cobra.Command{
		Use:     "new <file>",
		Short:   "Create a report skeleton with all nine lifecycle stages",
		Example: "  vulnlife new log4shell.md --title \"Log4Shell (CVE-2021-44228)\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			rep := artifact.Template(title)
			if err := artifact.Store(path, rep); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Created %s", path))
			ui.Detail("Title:", rep.Title())
			ui.Info(fmt.Sprintf("Run 'vulnlife serve %s' to edit it in the browser.", path))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Report title")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func renderCmd() *cobra.Command {
	var viewName, outPath, order string
	var css bool
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render one view of a report to HTML",
		Long:  "Render a report view (lifecycle, exploitability, intelligence, analysis, completion) as an HTML fragment.",
		Example: `  vulnlife render report.md
  vulnlife render report.md --view completion -o completion.html
  vulnlife render report.md --css > highlight.css`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, r, err := loadReport(args[0], order)
			if err != nil {
				return err
			}
			if css {
				ch, ok := r.Highlighter.(*render.ChromaHighlighter)
				if !ok {
					return fmt.Errorf("highlighter has no stylesheet")
				}
				sheet, err := ch.CSS()
				if err != nil {
					return err
				}
				return writeOutput(cmd, outPath, sheet)
			}
			view, err := render.ParseView(viewName)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outPath, r.RenderString(view, rep.Body))
		},
	}
	cmd.Flags().StringVar(&viewName, "view", string(render.ViewLifecycle), "View to render")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&order, "order", "", "Timeline order: insertion or basic-info-first")
	cmd.Flags().BoolVar(&css, "css", false, "Print the code highlighting stylesheet instead")
	return cmd
}

func stagesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stages <file>",
		Short: "List the lifecycle stages found in a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, r, err := loadReport(args[0], "")
			if err != nil {
				return err
			}
			stages := r.Stages(rep.Body)
			if asJSON {
				return printJSON(cmd, stages)
			}
			if len(stages) == 0 {
				ui.EmptyState("No '##' stage headings found.")
				return nil
			}
			var rows [][]string
			for _, s := range stages {
				num := "-"
				if n, ok := s.Number(); ok {
					num = strconv.Itoa(n)
				}
				rows = append(rows, []string{num, s.Title, strconv.Itoa(len(s.Metadata.Items)), strconv.Itoa(len(s.Headings))})
			}
			ui.Table([]string{"STAGE", "TITLE", "METADATA", "SECTIONS"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func timelineCmd() *cobra.Command {
	var order string
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "timeline <file>",
		Short:   "Group a report's stages into dated time nodes",
		Example: "  vulnlife timeline report.md --order basic-info-first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, r, err := loadReport(args[0], order)
			if err != nil {
				return err
			}
			nodes := r.Timeline(rep.Body)
			if asJSON {
				return printJSON(cmd, nodes)
			}
			if len(nodes) == 0 {
				ui.EmptyState("No stages to place on the timeline.")
				return nil
			}
			for _, n := range nodes {
				ui.SectionHeader(n.Label())
				for _, ts := range n.Stages {
					ui.Detail(ts.Stage.Title, ui.Dim(render.Summary(ts)))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "Timeline order: insertion or basic-info-first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printScore(rep completion.Report) {
	var rows [][]string
	for _, sc := range rep.Stages {
		state := ui.ProgressBar(sc.Completion, 20) + " " + ui.Percent(sc.Completion)
		if !sc.Present {
			state = ui.Dim("missing")
		}
		todos := ""
		if len(sc.Todos) > 0 {
			todos = ui.Yellow(fmt.Sprintf("%d todo", len(sc.Todos)))
		}
		rows = append(rows, []string{strconv.Itoa(sc.StageNum), stage.Name(sc.StageNum), state, todos})
	}
	ui.Table([]string{"#", "STAGE", "COMPLETION", ""}, rows)
	fmt.Fprintln(os.Stdout)
	ui.KeyValue("Overall:", ui.ProgressBar(rep.Overall, 30)+" "+ui.Bold(ui.Percent(rep.Overall)))
}

func scoreCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "score <file>",
		Short: "Score how complete each lifecycle stage is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, r, err := loadReport(args[0], "")
			if err != nil {
				return err
			}
			result := r.Completion(rep.Body)
			if asJSON {
				return printJSON(cmd, result)
			}
			ui.Banner("score", rep.Title())
			printScore(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a report covers all nine lifecycle stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := artifact.Load(args[0])
			if err != nil {
				return err
			}
			missing := artifact.Validate(rep)
			absent := make(map[int]bool, len(missing))
			for _, m := range missing {
				absent[m.Num] = true
			}
			for _, c := range stage.Canonical() {
				mark := ui.Green("✓")
				if absent[c.Num] {
					mark = ui.Red("✗")
				}
				fmt.Fprintf(ui.Out, "  %s %d. %s %s\n", mark, c.Num, c.Name, ui.Dim(c.English))
			}
			fmt.Fprintln(ui.Out)
			if len(missing) == 0 {
				ui.Success("All nine lifecycle stages are present")
				return nil
			}
			return fmt.Errorf("%d of %d stages missing", len(missing), stage.Count)
		},
	}
}

func previewCmd() *cobra.Command {
	var only int
	cmd := &cobra.Command{
		Use:     "preview <file>",
		Short:   "Preview a report in the terminal",
		Example: "  vulnlife preview report.md\n  vulnlife preview report.md --stage 8",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, r, err := loadReport(args[0], "")
			if err != nil {
				return err
			}
			if only == 0 {
				ui.RenderMarkdown(rep.Body)
				return nil
			}
			if stage.Name(only) == "" {
				return fmt.Errorf("stage must be between 1 and %d", stage.Count)
			}
			var b strings.Builder
			for _, s := range r.Stages(rep.Body) {
				if s.Is(only) {
					fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, s.Content)
				}
			}
			if b.Len() == 0 {
				ui.EmptyState(fmt.Sprintf("No \"%s\" section in this report yet.", stage.Name(only)))
				return nil
			}
			ui.RenderMarkdown(b.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&only, "stage", 0, "Only show one stage (1-9)")
	return cmd
}

func watchCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-score a report every time it is saved",
		Long:  "Watch a report file and print its completion score whenever it changes on disk. Use it next to your own editor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			buf, err := editor.OpenFileBuffer(args[0])
			if err != nil {
				return err
			}
			defer buf.Close()

			r := newRenderer(s, "")
			last := r.Completion(buf.CurrentText()).Overall
			ui.Banner("watch", buf.Path)
			ui.KeyValue("Overall:", ui.ProgressBar(last, 30)+" "+ui.Percent(last))

			rescore := func() {
				overall := r.Completion(buf.CurrentText()).Overall
				if overall == last {
					return
				}
				ui.KeyValue(time.Now().Format("15:04:05"), ui.ProgressBar(overall, 30)+" "+ui.Percent(overall))
				if notify && overall == 100 && last < 100 {
					ui.Notify("vulnlife", "Report is complete")
				}
				last = overall
			}
			debounce := editor.NewDebouncer(time.Duration(s.Config.Editor.DebounceMS)*time.Millisecond, rescore)
			defer debounce.Stop()
			sub := buf.OnChange(func(string) { debounce.Trigger() })
			defer sub.Unsubscribe()

			ui.Status("Watching for changes. Press Ctrl+C to stop.")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a desktop notification when the report reaches 100%")
	return cmd
}
