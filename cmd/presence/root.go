package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"presence/internal/app"
	"presence/internal/appversion"
	"presence/internal/logging"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	baseURL    string
	transport  string
	logLevel   string
}

// newRootCmd creates the root presence command with all subcommands attached.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "presence",
		Short:         "Live client for a presence status page",
		Long:          "presence follows a status page's live feed, reconnecting on failure\nand falling back to polling where streaming cannot work.",
		Version:       fmt.Sprintf("presence %s", appversion.Full()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default $PRESENCE_CONFIG or $PRESENCE_HOME/config.toml)")
	pf.StringVar(&g.baseURL, "base-url", "", "status server URL (overrides config)")
	pf.StringVar(&g.transport, "transport", "", "auto or poll (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	cmd.AddCommand(
		newWatchCmd(g),
		newQueryCmd(g),
		newProbeCmd(g),
		newDashCmd(g),
	)

	return cmd
}

// overrides returns the flag values as config overrides.
func (g *globalFlags) overrides() app.Overrides {
	return app.Overrides{
		ConfigPath: g.configPath,
		BaseURL:    g.baseURL,
		Transport:  g.transport,
		LogLevel:   g.logLevel,
	}
}

// open loads configuration and builds the App. Logs go to logw.
func (g *globalFlags) open(ctx context.Context, logw io.Writer) (*app.App, error) {
	cfg, paths, err := app.LoadConfig(g.overrides())
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logw, level, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, paths, logger)
}
