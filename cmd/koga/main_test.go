package main

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScript(t *testing.T, dir, code string) string {
	t.Helper()
	path := filepath.Join(dir, "script.lisp")
	require.NoError(t, os.WriteFile(path, []byte(code), 0o644))
	return path
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
(appendChild (createRectangle :x 10 :y 10 :cornerRadius 6))
(appendChild (createText :characters "hi"))
(notify "rendered")
(closePlugin)
`)
	pngPath := filepath.Join(dir, "out.png")
	svgPath := filepath.Join(dir, "out.svg")

	out, err := executeCommand(t, "render", script, "-o", pngPath, "--svg", svgPath, "--zoom", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "notify: rendered")
	assert.Contains(t, out, "plugin closed")
	assert.Contains(t, out, "2 objects · Zoom: 200%")

	f, err := os.Open(pngPath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())

	svg, err := os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.Contains(t, string(svg), ">hi<")
}

func TestRenderCommandScriptError(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "(appendChild (createEllipse))\n(group (list))")
	pngPath := filepath.Join(dir, "out.png")

	out, err := executeCommand(t, "render", script, "-o", pngPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script error")
	assert.Contains(t, out, "1 objects", "earlier effects are rendered")
	assert.FileExists(t, pngPath)
}

func TestRenderCommandMissingScript(t *testing.T) {
	_, err := executeCommand(t, "render", filepath.Join(t.TempDir(), "nope.lisp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read script")
}

func TestConfigFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "koga.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("canvas:\n  width: 320\n  height: 200\n"), 0o644))

	out, err := executeCommand(t, "--config", cfgPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "width: 320")
	assert.Contains(t, out, "zoom_step: 1.2")

	_, err = executeCommand(t, "--log-level", "loud", "config")
	assert.Error(t, err)

	_, err = executeCommand(t, "--config", filepath.Join(dir, "missing.yaml"), "config")
	assert.Error(t, err)
}

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	s, err := canvas.New(nil, canvas.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	var out bytes.Buffer
	return newRepl(context.Background(), s, &out), &out
}

func TestReplMultiLineForms(t *testing.T) {
	r, out := newTestRepl(t)

	assert.False(t, r.handle("(appendChild"))
	assert.True(t, r.continuing())
	assert.False(t, r.handle("  (createFrame :name \"(not a paren\"))"))
	assert.False(t, r.continuing())

	assert.Equal(t, 1, r.session.Status().Nodes)
	assert.Contains(t, out.String(), "1 objects")
}

func TestReplCommands(t *testing.T) {
	r, out := newTestRepl(t)
	r.handle("(appendChild (createRectangle))")

	r.handle(":zoom-in")
	assert.Contains(t, out.String(), "Zoom: 120%")

	out.Reset()
	r.handle(":tool ellipse")
	assert.Equal(t, "tool: ellipse\n", out.String())

	out.Reset()
	r.handle(":tool lasso")
	assert.Contains(t, out.String(), "unknown tool")

	out.Reset()
	r.handle(":status")
	assert.Contains(t, out.String(), "Tool: ellipse")

	dir := t.TempDir()
	out.Reset()
	r.handle(":save " + filepath.Join(dir, "page.svg"))
	assert.Contains(t, out.String(), "saved")
	svg, err := os.ReadFile(filepath.Join(dir, "page.svg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(svg)), "<?xml"))

	out.Reset()
	r.handle(":reset")
	assert.Contains(t, out.String(), "0 objects · Zoom: 100%")

	out.Reset()
	r.handle(":bogus")
	assert.Contains(t, out.String(), "unknown command")

	assert.True(t, r.handle(":quit"))
}

func TestReplReportsScriptErrors(t *testing.T) {
	r, out := newTestRepl(t)
	assert.False(t, r.handle("(nosuchfn 1)"))
	assert.Contains(t, out.String(), "script error")
}

func TestDepth(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"", 0},
		{"(a (b c))", 0},
		{"(a (b", 2},
		{"(a [1 2", 2},
		{`(notify "(")`, 0},
		{`(notify "\")")`, 0},
		{"(a ; )\n", 1},
		{"(a // )\n)", 0},
		{"))", -2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, depth(tt.src), "depth(%q)", tt.src)
	}
}

func TestWatcherRerun(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "(appendChild (createRectangle))\n(appendChild (createEllipse))")
	s, err := canvas.New(nil, canvas.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	var out bytes.Buffer
	w := &scriptWatcher{
		path:    script,
		session: s,
		output:  filepath.Join(dir, "out.png"),
		out:     &out,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	w.rerun(context.Background())
	assert.Equal(t, 2, s.Status().Nodes)
	assert.FileExists(t, w.output)

	// Each run starts from an empty page.
	require.NoError(t, os.WriteFile(script, []byte("(appendChild (createText))"), 0o644))
	w.rerun(context.Background())
	assert.Equal(t, 1, s.Status().Nodes)

	require.NoError(t, os.Remove(script))
	w.rerun(context.Background())
	assert.Equal(t, 1, s.Status().Nodes, "an unreadable script leaves the page alone")
}
