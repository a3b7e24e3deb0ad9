package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokistudios/vulnlife/internal/editor"
	"github.com/kokistudios/vulnlife/internal/remote"
	"github.com/kokistudios/vulnlife/internal/server"
	"github.com/kokistudios/vulnlife/internal/store"
	"github.com/kokistudios/vulnlife/internal/ui"
)

func serveCmd() *cobra.Command {
	var host string
	var port int
	var noAutosave bool
	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Edit a report in the browser with live views",
		Long: `Start a local editor for a report file. The page shows the markdown next to the
lifecycle, exploitability, intelligence, analysis, and completion views, which
update as you type. Edits are written back to the file, and changes made to the
file by other editors are picked up automatically.

When the configured token variable (GITHUB_TOKEN by default) is set, the page
can also save the report to and load it from a GitHub gist.`,
		Example: "  vulnlife serve report.md\n  vulnlife serve report.md --port 9000",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			cfg := s.Config

			buf, err := editor.OpenFileBuffer(args[0])
			if err != nil {
				return err
			}
			defer buf.Close()

			opts := editor.Options{
				Debounce: time.Duration(cfg.Editor.DebounceMS) * time.Millisecond,
				Logger:   ui.Logger,
			}
			if cfg.Editor.Autosave && !noAutosave {
				opts.Drafts = s
				opts.DraftName = reportName(buf.Path)
			}
			ws := editor.NewWorkspace(buf, newRenderer(s, ""), opts)
			defer ws.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srvOpts := server.Options{Drafts: s, GistFilename: cfg.Remote.Filename}
			if gist, err := gistClient(ctx, s); err == nil {
				srvOpts.Gist = gist
			} else {
				ui.Logger.Debug("gist sync disabled", "err", err)
			}

			srvCfg := &server.Config{Host: cfg.Server.Host, Port: cfg.Server.Port}
			if host != "" {
				srvCfg.Host = host
			}
			if port != 0 {
				srvCfg.Port = port
			}
			srv, err := server.NewServer(ws, ui.Logger, srvCfg, srvOpts)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			ui.Banner("serve", buf.Path)
			ui.KeyValue("Editor:", ui.Bold(fmt.Sprintf("http://%s", srv.Addr())))
			if srvOpts.Gist == nil {
				ui.Detail("Gist:", ui.Dim(fmt.Sprintf("disabled (set %s to enable)", cfg.Remote.TokenEnv)))
			}
			ui.Info("Press Ctrl+C to stop.")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			ui.Status("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ws.Flush()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			ui.Success("Stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")
	cmd.Flags().BoolVar(&noAutosave, "no-autosave", false, "Do not keep a draft copy in the vulnlife home")
	return cmd
}

// gistClient builds a client from the configured token variable.
func gistClient(ctx context.Context, s *store.Store) (*remote.Client, error) {
	c, err := remote.NewClient(ctx, os.Getenv(s.Config.Remote.TokenEnv))
	if err != nil {
		return nil, err
	}
	c.Public = s.Config.Remote.Public
	if s.Config.Remote.BaseURL != "" {
		return c.WithBaseURL(s.Config.Remote.BaseURL)
	}
	return c, nil
}
