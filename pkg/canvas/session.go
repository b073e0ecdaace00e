// Package canvas ties the document, viewport, script engine and renderer
// into one editing session: the thing a toolbar, a CLI or a preview server
// drives.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chazu/koga/pkg/config"
	"github.com/chazu/koga/pkg/engine"
	"github.com/chazu/koga/pkg/render"
	"github.com/chazu/koga/pkg/scene"
	"github.com/chazu/koga/pkg/viewport"
	"github.com/samber/lo"
)

// ErrBusy is returned by Execute while another execution is running.
var ErrBusy = errors.New("canvas: an execution is already running")

// Status is the status bar readout.
type Status struct {
	Nodes       int           `json:"nodes"`
	Objects     int           `json:"objects"`
	ZoomPercent int           `json:"zoomPercent"`
	Tool        viewport.Tool `json:"tool"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Busy        bool          `json:"busy"`
	Warnings    int           `json:"warnings"`
}

// String renders the status the way the status bar shows it.
func (s Status) String() string {
	return fmt.Sprintf("%d objects · Zoom: %d%% · Canvas: %d × %d", s.Nodes, s.ZoomPercent, s.Width, s.Height)
}

// Session is one canvas. All methods are safe for concurrent use.
type Session struct {
	doc      *scene.Document
	view     *viewport.Controller
	engine   *engine.Engine
	renderer *render.Renderer
	width    int
	height   int
	log      *slog.Logger
	onCode   func(code string)

	busy atomic.Bool

	// page orders Reset against readers that need the document and the
	// view from the same moment.
	page sync.RWMutex

	mu        sync.Mutex
	listeners map[int]func(Status)
	nextID    int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger; it is passed on to the engine and
// renderer.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithCodeHandler registers fn to receive every script handed to Execute,
// before it runs.
func WithCodeHandler(fn func(code string)) Option {
	return func(s *Session) { s.onCode = fn }
}

// New builds a session from cfg. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bg, err := cfg.BackgroundColor()
	if err != nil {
		return nil, err
	}
	grid, err := cfg.GridColor()
	if err != nil {
		return nil, err
	}

	s := &Session{
		doc:       scene.NewDocument(),
		width:     cfg.Canvas.Width,
		height:    cfg.Canvas.Height,
		log:       slog.Default(),
		listeners: make(map[int]func(Status)),
	}
	for _, o := range opts {
		o(s)
	}

	s.view = viewport.New(s.doc, viewport.WithLimits(viewport.Limits{
		Step: cfg.Viewport.ZoomStep,
		Min:  cfg.Viewport.MinZoom,
		Max:  cfg.Viewport.MaxZoom,
	}))
	s.engine = engine.New(engine.WithTimeout(cfg.Timeout()), engine.WithLogger(s.log))
	s.renderer = render.New(
		render.WithBackground(bg),
		render.WithGrid(cfg.Grid.Size, cfg.Grid.Extent, grid),
		render.WithLogger(s.log),
	)
	return s, nil
}

// Execute runs a generated script against the document. Only one
// execution runs at a time; a concurrent call gets ErrBusy rather than
// queueing. Script faults come back as *engine.ExecutionError, and
// whatever the script appended before faulting stays on the page.
func (s *Session) Execute(ctx context.Context, code string) (*engine.Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	s.notify()
	defer func() {
		s.busy.Store(false)
		s.notify()
	}()

	if s.onCode != nil {
		s.onCode(code)
	}
	res, err := s.engine.Execute(ctx, code, s.doc)
	if err != nil {
		return res, err
	}
	s.log.Info("script executed", "appended", res.Appended, "objects", s.doc.Len())
	return res, nil
}

// Busy reports whether an execution is running.
func (s *Session) Busy() bool { return s.busy.Load() }

// ZoomIn steps the zoom up.
func (s *Session) ZoomIn() Status {
	s.view.ZoomIn()
	return s.changed()
}

// ZoomOut steps the zoom down.
func (s *Session) ZoomOut() Status {
	s.view.ZoomOut()
	return s.changed()
}

// Pan moves the view by a document-space offset.
func (s *Session) Pan(dx, dy float64) Status {
	s.view.PanBy(dx, dy)
	return s.changed()
}

// SetView places the view at an absolute zoom and pan. Zoom is clamped to
// the configured limits.
func (s *Session) SetView(zoom float64, pan viewport.Point) Status {
	s.view.SetZoom(zoom)
	s.view.SetPan(pan)
	return s.changed()
}

// SetTool selects a toolbar tool by name.
func (s *Session) SetTool(name string) (Status, error) {
	if err := s.view.SetTool(viewport.Tool(name)); err != nil {
		return s.Status(), err
	}
	return s.changed(), nil
}

// Reset empties the page and restores the identity view.
func (s *Session) Reset() Status {
	s.page.Lock()
	s.view.Reset()
	s.page.Unlock()
	s.log.Info("canvas reset")
	return s.changed()
}

// Viewport returns the current view.
func (s *Session) Viewport() viewport.State { return s.view.State() }

// Nodes returns a deep copy of the page.
func (s *Session) Nodes() []*scene.Node { return s.doc.Snapshot() }

// Size is the canvas raster size.
func (s *Session) Size() (width, height int) { return s.width, s.height }

// Validate reports diagnostics for the current page.
func (s *Session) Validate() []scene.ValidationError {
	return scene.Validate(s.doc.Snapshot())
}

// Status is the current status bar readout.
func (s *Session) Status() Status {
	nodes, vp := s.frame()
	issues := scene.Validate(nodes)
	objects := 0
	for _, n := range nodes {
		n.Walk(func(*scene.Node) bool {
			objects++
			return true
		})
	}
	return Status{
		Nodes:       len(nodes),
		Objects:     objects,
		ZoomPercent: vp.ZoomPercent(),
		Tool:        vp.Tool,
		Width:       s.width,
		Height:      s.height,
		Busy:        s.Busy(),
		Warnings: lo.CountBy(issues, func(v scene.ValidationError) bool {
			return v.Severity == scene.SeverityWarning
		}),
	}
}

// Image renders the page at the canvas size.
func (s *Session) Image() *image.RGBA {
	nodes, vp := s.frame()
	return s.renderer.Image(nodes, vp, s.width, s.height)
}

// RenderPNG writes the page as PNG.
func (s *Session) RenderPNG(w io.Writer) error {
	nodes, vp := s.frame()
	return s.renderer.RenderPNG(w, nodes, vp, s.width, s.height)
}

// RenderSVG writes the page as SVG.
func (s *Session) RenderSVG(w io.Writer) error {
	nodes, vp := s.frame()
	return s.renderer.RenderSVG(w, nodes, vp, s.width, s.height)
}

// frame snapshots the page and the view together, so a render never pairs
// a reset view with the nodes it cleared.
func (s *Session) frame() ([]*scene.Node, viewport.State) {
	s.page.RLock()
	defer s.page.RUnlock()
	return s.doc.Snapshot(), s.view.State()
}

// Subscribe registers fn to be called with the new status after every
// change. The returned function removes it.
func (s *Session) Subscribe(fn func(Status)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) changed() Status {
	st := s.Status()
	s.broadcast(st)
	return st
}

func (s *Session) notify() { s.broadcast(s.Status()) }

func (s *Session) broadcast(st Status) {
	s.mu.Lock()
	fns := lo.Values(s.listeners)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
