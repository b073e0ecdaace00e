package main

import (
	"fmt"

	"github.com/chazu/koga/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCommand(g *globals) *cobra.Command {
	var addr string
	var script string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live canvas preview over HTTP",
		Long: `Starts the preview server. Scripts are POSTed to /api/execute, the page
is available at /api/render.png and /api/render.svg, and browsers open at
/ get status updates over a WebSocket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = g.cfg.Server.Addr
			}
			s, err := g.session()
			if err != nil {
				return err
			}
			if script != "" {
				code, err := readScript(cmd, script)
				if err != nil {
					return err
				}
				if _, err := s.Execute(cmd.Context(), code); err != nil {
					g.log.Warn("initial script failed", "error", describeError(err))
				}
			}

			srv := server.New(s, server.WithLogger(g.log))
			defer srv.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "koga preview on http://%s\n", addr)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&script, "script", "", "Script to execute before serving")

	return cmd
}
