package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "koga> "
	replContinuing = "...   "
)

func newReplCommand(g *globals) *cobra.Command {
	var history string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively build a page one script at a time",
		Long: `Reads scripts from the terminal and runs each against the same page.
A form left open continues on the next line. Lines starting with ':' are
canvas commands; type :help to list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.session()
			if err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          replPrompt,
				HistoryFile:     history,
				InterruptPrompt: "^C",
				EOFPrompt:       ":quit",
				Stdout:          cmd.OutOrStdout(),
				Stderr:          cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init readline: %w", err)
			}
			defer rl.Close()

			r := newRepl(cmd.Context(), s, rl.Stdout())
			fmt.Fprintln(r.out, "koga repl. :help for commands, :quit to leave.")
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					r.discard()
					rl.SetPrompt(replPrompt)
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if r.handle(line) {
					return nil
				}
				if r.continuing() {
					rl.SetPrompt(replContinuing)
				} else {
					rl.SetPrompt(replPrompt)
				}
			}
		},
	}

	cmd.Flags().StringVar(&history, "history", "", "History file (none when empty)")

	return cmd
}

// repl is the line handler behind `koga repl`, kept free of the terminal
// so it can be driven directly.
type repl struct {
	ctx     context.Context
	session *canvas.Session
	out     io.Writer
	pending strings.Builder
}

func newRepl(ctx context.Context, s *canvas.Session, out io.Writer) *repl {
	return &repl{ctx: ctx, session: s, out: out}
}

// continuing reports whether an unfinished form is buffered.
func (r *repl) continuing() bool { return r.pending.Len() > 0 }

func (r *repl) discard() { r.pending.Reset() }

// handle processes one input line and reports whether to quit.
func (r *repl) handle(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !r.continuing() && strings.HasPrefix(trimmed, ":") {
		return r.command(strings.Fields(trimmed))
	}
	if !r.continuing() && trimmed == "" {
		return false
	}

	r.pending.WriteString(line)
	r.pending.WriteByte('\n')
	code := r.pending.String()
	if depth(code) > 0 {
		return false
	}
	r.pending.Reset()

	res, err := r.session.Execute(r.ctx, code)
	printResult(r.out, res)
	if err := describeError(err); err != nil {
		fmt.Fprintln(r.out, err)
	}
	fmt.Fprintln(r.out, r.session.Status())
	return false
}

func (r *repl) command(fields []string) bool {
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help":
		fmt.Fprint(r.out, replHelp)
	case ":reset":
		fmt.Fprintln(r.out, r.session.Reset())
	case ":zoom-in":
		fmt.Fprintln(r.out, r.session.ZoomIn())
	case ":zoom-out":
		fmt.Fprintln(r.out, r.session.ZoomOut())
	case ":status":
		st := r.session.Status()
		fmt.Fprintf(r.out, "%s · Tool: %s · Warnings: %d\n", st, st.Tool, st.Warnings)
	case ":tool":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: :tool NAME")
			return false
		}
		st, err := r.session.SetTool(fields[1])
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		fmt.Fprintf(r.out, "tool: %s\n", st.Tool)
	case ":pan":
		if len(fields) != 3 {
			fmt.Fprintln(r.out, "usage: :pan DX DY")
			return false
		}
		dx, errX := strconv.ParseFloat(fields[1], 64)
		dy, errY := strconv.ParseFloat(fields[2], 64)
		if errX != nil || errY != nil {
			fmt.Fprintln(r.out, "usage: :pan DX DY")
			return false
		}
		fmt.Fprintln(r.out, r.session.Pan(dx, dy))
	case ":save":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: :save FILE.png|FILE.svg")
			return false
		}
		r.save(fields[1])
	default:
		fmt.Fprintf(r.out, "unknown command %s (:help lists commands)\n", fields[0])
	}
	return false
}

func (r *repl) save(path string) {
	render := r.session.RenderPNG
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		render = r.session.RenderSVG
	}
	if err := writeFile(path, render); err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	fmt.Fprintf(r.out, "saved %s\n", path)
}

const replHelp = `  :reset          empty the page and reset the view
  :zoom-in        zoom in one step
  :zoom-out       zoom out one step
  :pan DX DY      move the view
  :tool NAME      select, frame, text, rectangle or ellipse
  :status         print the status bar
  :save FILE      write the page as PNG, or SVG for .svg
  :quit           leave
`

// depth returns how many brackets src leaves open, skipping strings and
// line comments. It is negative when src closes more than it opens.
func depth(src string) int {
	n := 0
	inString, escaped, inComment := false, false, false
	var prev rune
	for _, c := range src {
		last := prev
		prev = c
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == ';', c == '/' && last == '/':
			inComment = true
		case c == '(' || c == '[' || c == '{':
			n++
		case c == ')' || c == ']' || c == '}':
			n--
		}
	}
	return n
}
