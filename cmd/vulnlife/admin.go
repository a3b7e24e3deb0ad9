package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	vulnmcp "github.com/kokistudios/vulnlife/internal/mcp"
	"github.com/kokistudios/vulnlife/internal/store"
	"github.com/kokistudios/vulnlife/internal/ui"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize the vulnlife home directory",
		Long:    "Create the vulnlife home (~/.vulnlife by default, or $VULNLIFE_HOME) with drafts/, exports/, and config.yaml.",
		Example: "  vulnlife init\n  vulnlife init --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			if err := store.Init(home, force); err != nil {
				return err
			}
			ui.Success("vulnlife initialized")
			ui.Detail("Home:", home)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if the home already exists")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit vulnlife configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a vulnlife configuration value. Valid keys: " + strings.Join(store.ConfigKeys, ", ") + ".\n" +
			"Vocabulary keys take a comma-separated list that is added to the built-in words.",
		Example: `  vulnlife config set server.port 9000
  vulnlife config set editor.time_order basic-info-first
  vulnlife config set vocabulary.sentinel_phrases "not yet known,unconfirmed"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check health of the vulnlife home",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()

			if fix {
				ui.Banner("doctor", "repair mode")
				fixed := store.FixIssues(home)
				for _, f := range fixed {
					ui.Success(fmt.Sprintf("[FIXED] %s", f))
				}
				if len(fixed) == 0 {
					ui.EmptyState("Nothing to fix.")
				}
			} else {
				ui.Banner("doctor", "health check")
			}

			issues := store.CheckHealth(home)
			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			errs := 0
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					errs++
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}
			if errs > 0 {
				return fmt.Errorf("%d error(s) found (run 'vulnlife doctor --fix' to repair)", errs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Recreate missing directories and config")
	return cmd
}

func mcpServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Run vulnlife as an MCP server",
		Long:   "Start vulnlife as a Model Context Protocol (MCP) server over stdio, exposing report parsing, timeline, completion, rendering, and validation as tools.",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			return vulnmcp.NewServer(s, version).Run(context.Background())
		},
	}
}
