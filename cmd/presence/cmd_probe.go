package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"presence/pkg/probe"
)

// newProbeCmd creates the "presence probe" subcommand.
func newProbeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether streaming can work against the server",
		Long:  "Requests the probe path once and reports whether an edge platform\nthat buffers streamed responses sits in front of the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // best-effort cache close on exit

			result, err := a.Prober.Probe(cmd.Context())
			switch result {
			case probe.Compatible:
				fmt.Fprintln(cmd.OutOrStdout(), "compatible: push stream supported")
			case probe.Incompatible:
				fmt.Fprintf(cmd.OutOrStdout(), "incompatible: %v (will poll)\n", err)
			default:
				return fmt.Errorf("probe indeterminate: %w", err)
			}
			return nil
		},
	}
}
