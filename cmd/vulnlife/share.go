package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokistudios/vulnlife/internal/artifact"
	"github.com/kokistudios/vulnlife/internal/bundle"
	"github.com/kokistudios/vulnlife/internal/store"
	"github.com/kokistudios/vulnlife/internal/ui"
)

func exportCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a report and its rendered views to a bundle",
		Long: `Export a report to a portable .tar.gz bundle.

The bundle holds the markdown source, every rendered view as a standalone HTML
page with its stylesheet, and a manifest with the completion score of each stage.`,
		Example: `  vulnlife export log4shell.md
  vulnlife export log4shell.md -o ~/Desktop/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			outPath := outputPath
			if outPath == "" {
				outPath = s.Path("exports")
			}

			spin := ui.NewSpinner("Rendering views...")
			manifest, path, err := bundle.Export(string(data), newRenderer(s, ""), outPath)
			spin.Stop()
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			sizeStr := ""
			if info, err := os.Stat(path); err == nil {
				sizeStr = fmt.Sprintf(" (%d bytes)", info.Size())
			}
			ui.Success(fmt.Sprintf("Exported to %s%s", path, sizeStr))
			ui.KeyValue("Title:  ", manifest.Title)
			ui.KeyValue("Overall:", ui.Percent(manifest.Overall))
			ui.KeyValue("Files:  ", strconv.Itoa(len(manifest.Files)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file or directory (default: <home>/exports)")
	return cmd
}

func importCmd() *cobra.Command {
	var preview, force bool
	var outPath string
	cmd := &cobra.Command{
		Use:   "import <bundle-path>",
		Short: "Import a report from an export bundle",
		Long: `Import the markdown source of an export bundle.

By default the report is saved as a draft in the vulnlife home; use -o to write
it to a file instead. Use --preview to inspect the manifest without importing.`,
		Example: `  vulnlife import log4shell.tar.gz --preview
  vulnlife import log4shell.tar.gz -o log4shell.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bundle.Import(args[0])
			if err != nil {
				return fmt.Errorf("failed to read bundle: %w", err)
			}
			m := b.Manifest

			if preview {
				ui.Banner("import preview", args[0])
				ui.KeyValue("Title:      ", m.Title)
				ui.KeyValue("Exported at:", m.ExportedAt.Format("2006-01-02 15:04:05"))
				ui.KeyValue("Overall:    ", ui.Percent(m.Overall))
				ui.SectionHeader("Stages")
				for _, sc := range m.Stages {
					state := ui.Percent(sc.Completion)
					if !sc.Present {
						state = ui.Dim("missing")
					}
					ui.Detail(fmt.Sprintf("%d. %s", sc.Num, sc.Title), state)
				}
				ui.Info("Run without --preview to import this report.")
				return nil
			}

			if outPath != "" {
				if _, err := os.Stat(outPath); err == nil && !force {
					return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
				}
				if err := writeOutput(cmd, outPath, b.Markdown); err != nil {
					return err
				}
				ui.Success(fmt.Sprintf("Imported %q to %s", m.Title, outPath))
				return nil
			}

			s, err := loadStore()
			if err != nil {
				return err
			}
			name := store.DraftName(m.Title)
			if err := s.SaveDraft(name, b.Markdown); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Imported %q as draft %s", m.Title, name))
			ui.Info(fmt.Sprintf("Run 'vulnlife draft show %s' to print it.", name))
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Preview bundle contents without importing")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the report to this file instead of the drafts")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing output file")
	return cmd
}

func gistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gist",
		Short: "Save reports to and load them from GitHub gists",
		Long:  "Sync a report with a GitHub gist. The token is read from the variable named by remote.token_env (GITHUB_TOKEN by default).",
	}
	cmd.AddCommand(gistSaveCmd())
	cmd.AddCommand(gistLoadCmd())
	return cmd
}

func gistSaveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "save <file>",
		Short:   "Save a report to a new gist, or update an existing one",
		Example: "  vulnlife gist save report.md\n  vulnlife gist save report.md --id 1a2b3c",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			rep, err := artifact.Load(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client, err := gistClient(ctx, s)
			if err != nil {
				return err
			}
			spin := ui.NewSpinner("Saving gist...")
			g, err := client.Save(ctx, id, s.Config.Remote.Filename, rep.Raw)
			spin.Stop()
			if err != nil {
				return err
			}
			ui.Success("Saved gist")
			ui.KeyValue("ID: ", g.ID)
			ui.KeyValue("URL:", g.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Existing gist ID to update")
	return cmd
}

func gistLoadCmd() *cobra.Command {
	var outPath string
	var force bool
	cmd := &cobra.Command{
		Use:     "load <gist-id>",
		Short:   "Print or write the markdown file of a gist",
		Example: "  vulnlife gist load 1a2b3c -o report.md",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			if outPath != "" && outPath != "-" && !force {
				if _, err := os.Stat(outPath); err == nil {
					ok, err := ui.Confirm(fmt.Sprintf("Overwrite %s?", outPath))
					if err != nil {
						return err
					}
					if !ok {
						return errors.New("aborted")
					}
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client, err := gistClient(ctx, s)
			if err != nil {
				return err
			}
			text, err := client.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, outPath, text); err != nil {
				return err
			}
			if outPath != "" && outPath != "-" {
				ui.Success(fmt.Sprintf("Loaded gist %s into %s", args[0], outPath))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite without asking")
	return cmd
}

func draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage autosaved drafts",
		Long:  "The editor keeps a copy of each report under <home>/drafts after every render pass. Use these commands to inspect or recover them.",
	}
	cmd.AddCommand(draftListCmd())
	cmd.AddCommand(draftShowCmd())
	cmd.AddCommand(draftRemoveCmd())
	return cmd
}

func draftListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			drafts, err := s.ListDrafts()
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				ui.EmptyState("No drafts yet. Drafts are saved while 'vulnlife serve' runs.")
				return nil
			}
			var rows [][]string
			for _, d := range drafts {
				rows = append(rows, []string{d.Name, strconv.FormatInt(d.Size, 10), d.Updated.Format("2006-01-02 15:04")})
			}
			ui.Table([]string{"NAME", "BYTES", "UPDATED"}, rows)
			return nil
		},
	}
}

func draftShowCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a draft, or restore it to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			text, err := s.LoadDraft(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, outPath, text)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Restore to this file instead of printing")
	return cmd
}

func draftRemoveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Delete a draft",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if !yes {
				ok, err := ui.Confirm(fmt.Sprintf("Delete draft %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := s.DeleteDraft(args[0]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Deleted draft %s", args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}
