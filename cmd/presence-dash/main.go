// Package main implements the presence-dash interactive dashboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"presence/internal/app"
	"presence/internal/appversion"
	"presence/internal/logging"
	"presence/pkg/projector"
	"presence/pkg/statusync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the presence-dash command. Its flags mirror the
// persistent flags of presence so "presence dash" can pass them through.
func newRootCmd() *cobra.Command {
	var o app.Overrides
	cmd := &cobra.Command{
		Use:           "presence-dash",
		Short:         "Interactive presence dashboard",
		Version:       fmt.Sprintf("presence-dash %s", appversion.Full()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	f := cmd.Flags()
	f.StringVar(&o.ConfigPath, "config", "", "config file")
	f.StringVar(&o.BaseURL, "base-url", "", "status server URL (overrides config)")
	f.StringVar(&o.Transport, "transport", "", "auto or poll (overrides config)")
	f.StringVar(&o.LogLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	return cmd
}

// run wires the sync client to the TUI. Logs go to the dash log file because
// the terminal belongs to the UI.
func run(ctx context.Context, o app.Overrides) error {
	cfg, paths, err := app.LoadConfig(o)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(paths.DashLogPath), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(paths.DashLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open dash log: %w", err)
	}
	defer logFile.Close() //nolint:errcheck // best-effort close on exit

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(logFile, level, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cache close on exit

	visible := &atomic.Bool{}
	var p *tea.Program
	client, err := a.Sync(app.Hooks{
		OnFrame: func(f projector.Frame) { p.Send(frameMsg{frame: f}) },
		OnState: func(c statusync.StateChange) { p.Send(stateMsg{change: c}) },
		Visible: visible.Load,
	})
	if err != nil {
		return err
	}

	watch, closeWatch := watchConfig(paths.ConfigPath)
	defer closeWatch() //nolint:errcheck // best-effort close on exit

	m := newModel(client, visible, watch)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	go client.Start(ctx)
	defer client.Stop()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}
