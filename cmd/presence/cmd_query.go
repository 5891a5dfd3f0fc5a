package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"presence/pkg/projector"
)

// newQueryCmd creates the "presence query" subcommand.
func newQueryCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the current status once",
		Long:  "Pulls one snapshot from the server's query endpoint and prints it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // best-effort cache close on exit

			frame, err := a.Snapshot(cmd.Context(), time.Local)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout(), asJSON).frame(frame)
			if ev, ok := frame.(projector.ErrorView); ok {
				if ev.Cause != nil {
					return ev.Cause
				}
				return errors.New(ev.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "force JSON output")
	return cmd
}
