package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// dashBinary is the TUI executable, looked up on PATH.
const dashBinary = "presence-dash"

// newDashCmd creates the "presence dash" subcommand.
func newDashCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Launch the interactive dashboard",
		Long:  "Opens the presence-dash TUI with the same config, server and transport.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dashCmd := exec.CommandContext(cmd.Context(), dashBinary, g.passthrough()...)
			dashCmd.Stdin = os.Stdin
			dashCmd.Stdout = os.Stdout
			dashCmd.Stderr = os.Stderr

			if err := dashCmd.Run(); err != nil {
				return fmt.Errorf("run %s: %w", dashBinary, err)
			}

			return nil
		},
	}
}

// passthrough returns the global flags that were set, in presence-dash's
// flag syntax.
func (g *globalFlags) passthrough() []string {
	var args []string
	add := func(name, v string) {
		if v != "" {
			args = append(args, "--"+name+"="+v)
		}
	}
	add("config", g.configPath)
	add("base-url", g.baseURL)
	add("transport", g.transport)
	add("log-level", g.logLevel)
	return args
}
