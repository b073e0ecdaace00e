package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/chazu/koga/pkg/canvas"
	"github.com/chazu/koga/pkg/config"
	"github.com/chazu/koga/pkg/engine"
	"github.com/chazu/koga/pkg/scene"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// statusEvent is emitted to the frontend after every canvas change.
const statusEvent = "canvas:status"

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx     context.Context
	session *canvas.Session
	log     *slog.Logger
}

// ScriptErrorData is a JSON-serializable script error for the frontend.
type ScriptErrorData struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ExecuteResult is the full result returned to the frontend.
type ExecuteResult struct {
	OK            bool              `json:"ok"`
	Errors        []ScriptErrorData `json:"errors"`
	Notifications []string          `json:"notifications"`
	Closed        bool              `json:"closed"`
	Status        canvas.Status     `json:"status"`
	Image         string            `json:"image"`
}

// ViewResult is returned by the toolbar bindings.
type ViewResult struct {
	Status canvas.Status `json:"status"`
	Image  string        `json:"image"`
	Error  string        `json:"error,omitempty"`
}

// NewApp creates an App over a canvas with the default configuration.
func NewApp() *App {
	a, err := NewAppWithConfig(config.Default())
	if err != nil {
		// The defaults always validate.
		panic(err)
	}
	return a
}

// NewAppWithConfig creates an App over a canvas built from cfg.
func NewAppWithConfig(cfg *config.Config) (*App, error) {
	a := &App{log: slog.Default()}
	s, err := canvas.New(cfg, canvas.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	a.session = s
	return a, nil
}

// startup is called by Wails on app startup. The context is saved
// so status changes can be pushed to the frontend.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.session.Subscribe(func(st canvas.Status) {
		runtime.EventsEmit(ctx, statusEvent, st)
	})
}

// Execute runs generated plugin code against the page and returns the
// rendered result. This is the primary binding called by the frontend.
func (a *App) Execute(source string) ExecuteResult {
	result := ExecuteResult{
		Errors:        []ScriptErrorData{},
		Notifications: []string{},
	}

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := a.session.Execute(ctx, source)
	if res != nil {
		result.Notifications = append(result.Notifications, res.Notifications...)
		result.Closed = res.Closed
	}
	if err != nil {
		a.log.Warn("execute failed", "error", err)
		result.Errors = append(result.Errors, toScriptError(err))
	}
	result.OK = err == nil
	result.Status = a.session.Status()
	result.Image = a.Render()
	return result
}

func toScriptError(err error) ScriptErrorData {
	var ee *engine.ExecutionError
	if errors.As(err, &ee) {
		return ScriptErrorData{Line: ee.Line, Message: ee.Message}
	}
	return ScriptErrorData{Message: err.Error()}
}

// ZoomIn steps the zoom up.
func (a *App) ZoomIn() ViewResult { return a.view(a.session.ZoomIn(), nil) }

// ZoomOut steps the zoom down.
func (a *App) ZoomOut() ViewResult { return a.view(a.session.ZoomOut(), nil) }

// Reset empties the page and restores the default view.
func (a *App) Reset() ViewResult { return a.view(a.session.Reset(), nil) }

// Pan moves the view by a document-space offset.
func (a *App) Pan(dx, dy float64) ViewResult { return a.view(a.session.Pan(dx, dy), nil) }

// SetTool selects a toolbar tool.
func (a *App) SetTool(name string) ViewResult {
	st, err := a.session.SetTool(name)
	return a.view(st, err)
}

// Status returns the status bar readout.
func (a *App) Status() canvas.Status { return a.session.Status() }

// Document returns the page as JSON-friendly nodes.
func (a *App) Document() []*scene.Node { return a.session.Nodes() }

// Render returns the page as a PNG data URL. It returns an empty string
// when encoding fails.
func (a *App) Render() string {
	var buf bytes.Buffer
	if err := a.session.RenderPNG(&buf); err != nil {
		a.log.Error("render failed", "error", err)
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// RenderSVG returns the page as SVG markup.
func (a *App) RenderSVG() string {
	var buf bytes.Buffer
	if err := a.session.RenderSVG(&buf); err != nil {
		a.log.Error("svg render failed", "error", err)
		return ""
	}
	return buf.String()
}

func (a *App) view(st canvas.Status, err error) ViewResult {
	r := ViewResult{Status: st, Image: a.Render()}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
