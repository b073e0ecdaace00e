package main

import (
	"github.com/spf13/cobra"
)

func newConfigCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.cfg.Write(cmd.OutOrStdout())
		},
	}
}
