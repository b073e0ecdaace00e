package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 100 * time.Millisecond

func newWatchCommand(g *globals) *cobra.Command {
	var output, svgPath string

	cmd := &cobra.Command{
		Use:   "watch SCRIPT",
		Short: "Re-render whenever a script changes",
		Long: `Executes SCRIPT and writes the canvas, then does so again from an empty
page every time the file is saved. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.session()
			if err != nil {
				return err
			}
			w := &scriptWatcher{
				path:    filepath.Clean(args[0]),
				session: s,
				output:  output,
				svg:     svgPath,
				out:     cmd.OutOrStdout(),
				log:     g.log,
			}
			return w.watch(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "canvas.png", "PNG output path")
	cmd.Flags().StringVar(&svgPath, "svg", "", "Also write an SVG to this path")

	return cmd
}

type scriptWatcher struct {
	path    string
	session *canvas.Session
	output  string
	svg     string
	out     io.Writer
	log     *slog.Logger
}

func (w *scriptWatcher) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file on save, so watch its directory.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.rerun(ctx)
	w.log.Info("watching script", "path", w.path)

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)

		case <-debounce.C:
			w.rerun(ctx)
		}
	}
}

// rerun executes the script on an empty page and writes the outputs.
// Failures are reported and the watch goes on.
func (w *scriptWatcher) rerun(ctx context.Context) {
	code, err := readFile(w.path)
	if err != nil {
		w.log.Warn("cannot read script", "path", w.path, "error", err)
		return
	}
	w.session.Reset()
	res, runErr := w.session.Execute(ctx, code)
	printResult(w.out, res)
	if err := describeError(runErr); err != nil {
		fmt.Fprintln(w.out, err)
	}
	if err := writeOutputs(w.session, w.output, w.svg); err != nil {
		w.log.Error("cannot write output", "error", err)
		return
	}
	fmt.Fprintln(w.out, w.session.Status())
}
