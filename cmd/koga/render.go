package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/chazu/koga/pkg/engine"
	"github.com/chazu/koga/pkg/viewport"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	output string
	svg    string
	zoom   float64
	panX   float64
	panY   float64
}

func newRenderCommand(g *globals) *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render SCRIPT",
		Short: "Execute a script once and write the page as an image",
		Long: `Executes SCRIPT (or stdin when SCRIPT is "-") against an empty page and
writes the rendered canvas. Nodes appended before a script error are
still rendered; the error is reported after the image is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readScript(cmd, args[0])
			if err != nil {
				return err
			}
			s, err := g.session()
			if err != nil {
				return err
			}
			s.SetView(opts.zoom, viewport.Point{X: opts.panX, Y: opts.panY})

			res, runErr := s.Execute(cmd.Context(), code)
			printResult(cmd.OutOrStdout(), res)
			if err := writeOutputs(s, opts.output, opts.svg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Status())
			return describeError(runErr)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "canvas.png", "PNG output path (empty to skip)")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "Also write an SVG to this path")
	cmd.Flags().Float64Var(&opts.zoom, "zoom", 1, "View zoom factor")
	cmd.Flags().Float64Var(&opts.panX, "pan-x", 0, "Horizontal pan in document units")
	cmd.Flags().Float64Var(&opts.panY, "pan-y", 0, "Vertical pan in document units")

	return cmd
}

func printResult(w io.Writer, res *engine.Result) {
	if res == nil {
		return
	}
	for _, n := range res.Notifications {
		fmt.Fprintf(w, "notify: %s\n", n)
	}
	if res.Closed {
		fmt.Fprintln(w, "plugin closed")
	}
}

func writeOutputs(s *canvas.Session, pngPath, svgPath string) error {
	if pngPath != "" {
		if err := writeFile(pngPath, s.RenderPNG); err != nil {
			return err
		}
	}
	if svgPath != "" {
		if err := writeFile(svgPath, s.RenderSVG); err != nil {
			return err
		}
	}
	return nil
}

// writeFile renders into a temp file beside path and renames it into
// place, so watchers of path never see a half-written image.
func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".koga-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(f.Name())

	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// describeError formats script faults for the terminal.
func describeError(err error) error {
	if err == nil {
		return nil
	}
	var ee *engine.ExecutionError
	if errors.As(err, &ee) {
		return fmt.Errorf("script error: %s", ee.Error())
	}
	return err
}

func readAll(r io.Reader) (string, error) {
	var b strings.Builder
	if _, err := io.Copy(&b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}
