package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/chazu/koga/pkg/config"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// globals holds state shared by every subcommand once the root's
// PersistentPreRunE has run.
type globals struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "koga",
		Short: "Run design plugin scripts against a mock canvas",
		Long: `koga executes generated Lisp plugin scripts against an in-memory
scene graph that mimics a design tool's plugin API, then renders the page
to PNG or SVG, live in a browser, or in a desktop window.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (defaults to ./"+config.DefaultFile+" when present)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	cmd.AddCommand(newRenderCommand(g))
	cmd.AddCommand(newWatchCommand(g))
	cmd.AddCommand(newReplCommand(g))
	cmd.AddCommand(newServeCommand(g))
	cmd.AddCommand(newConfigCommand(g))

	return cmd
}

func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOptional(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.log)
	return nil
}

func (g *globals) session(opts ...canvas.Option) (*canvas.Session, error) {
	opts = append([]canvas.Option{canvas.WithLogger(g.log)}, opts...)
	s, err := canvas.New(g.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	return s, nil
}

// readScript reads a script file, or stdin when path is "-".
func readScript(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := readAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
	return readFile(path)
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}
