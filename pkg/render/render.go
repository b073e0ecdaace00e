// Package render rasterizes a scene under a viewport transform. Painting
// is depth-first in document order with fogleman/gg; the same scene can
// be exported as SVG.
package render

import (
	"image"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/chazu/koga/pkg/scene"
	"github.com/chazu/koga/pkg/viewport"
	"github.com/fogleman/gg"
)

// Stock canvas appearance.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 800
	DefaultGridSize   = 20.0
	DefaultGridExtent = 2000.0
)

var (
	DefaultBackground = scene.Opaque(1, 1, 1)
	DefaultGridColor  = scene.Opaque(240.0/255, 240.0/255, 240.0/255)
)

// Renderer paints scenes. It is safe for concurrent use; renders are
// serialized because font faces are shared.
type Renderer struct {
	background scene.Color
	gridSize   float64
	gridExtent float64
	gridColor  scene.Color
	log        *slog.Logger

	mu    sync.Mutex
	fonts *fontCache
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithBackground sets the clear colour.
func WithBackground(c scene.Color) Option {
	return func(r *Renderer) { r.background = c }
}

// WithGrid sets the grid cell size, extent and colour. A non-positive
// size disables the grid.
func WithGrid(size, extent float64, c scene.Color) Option {
	return func(r *Renderer) {
		r.gridSize, r.gridExtent, r.gridColor = size, extent, c
	}
}

// WithLogger sets the logger for skipped nodes.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// New creates a Renderer with the stock appearance.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		background: DefaultBackground,
		gridSize:   DefaultGridSize,
		gridExtent: DefaultGridExtent,
		gridColor:  DefaultGridColor,
		log:        slog.Default(),
		fonts:      newFontCache(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render paints nodes into dst under vp. It never fails: nodes that cannot
// be drawn are skipped.
func (r *Renderer) Render(nodes []*scene.Node, vp viewport.State, dst *image.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(r.background.NRGBA())
	dc.Clear()

	zoom := vp.Zoom
	if !(zoom > 0) || math.IsInf(zoom, 0) {
		zoom = 1
	}
	p := &painter{
		r:     r,
		dc:    dc,
		zoom:  zoom,
		vp:    viewport.State{Zoom: zoom, Pan: vp.Pan},
		drawn: make(map[*scene.Node]bool),
	}

	// Scale first, then translate: screen = zoom·(p + pan).
	dc.Push()
	dc.Scale(zoom, zoom)
	dc.Translate(vp.Pan.X, vp.Pan.Y)
	p.grid()
	for _, n := range nodes {
		p.node(n)
	}
	dc.Pop()
}

// Image renders into a new width×height image.
func (r *Renderer) Image(nodes []*scene.Node, vp viewport.State, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	r.Render(nodes, vp, dst)
	return dst
}

// RenderPNG renders a width×height image and encodes it as PNG.
func (r *Renderer) RenderPNG(w io.Writer, nodes []*scene.Node, vp viewport.State, width, height int) error {
	dc := gg.NewContextForRGBA(r.Image(nodes, vp, width, height))
	return dc.EncodePNG(w)
}

// clampRadius keeps a corner radius inside the box it rounds.
func clampRadius(r, w, h float64) float64 {
	if !(r > 0) {
		return 0
	}
	return math.Min(r, math.Min(w/2, h/2))
}

// painter carries the state of one Render call.
type painter struct {
	r     *Renderer
	dc    *gg.Context
	zoom  float64
	vp    viewport.State
	drawn map[*scene.Node]bool
}

func (p *painter) grid() {
	size, extent := p.r.gridSize, p.r.gridExtent
	if !(size > 0) || !(extent > 0) {
		return
	}
	p.dc.SetColor(p.r.gridColor.NRGBA())
	p.dc.SetLineWidth(1 * p.zoom)
	for x := 0.0; x < extent; x += size {
		p.dc.DrawLine(x, 0, x, extent)
		p.dc.Stroke()
	}
	for y := 0.0; y < extent; y += size {
		p.dc.DrawLine(0, y, extent, y)
		p.dc.Stroke()
	}
}

func (p *painter) skip(n *scene.Node, reason string) {
	p.r.log.Debug("skipping node", "id", n.ID, "kind", n.Kind(), "reason", reason)
}

// node paints n and then its children.
func (p *painter) node(n *scene.Node) {
	if n == nil || p.drawn[n] {
		return
	}
	p.drawn[n] = true

	if !finite(n.X, n.Y, n.Width, n.Height, n.StrokeWeight) {
		p.skip(n, "non-finite geometry")
		return
	}

	switch d := n.Data.(type) {
	case *scene.FrameData:
		p.box(n, d.CornerRadius)
	case *scene.RectangleData:
		p.box(n, d.CornerRadius)
	case *scene.EllipseData:
		p.ellipse(n)
	case *scene.TextData:
		p.text(n, d)
	case *scene.GroupData:
		// Groups paint only their children.
	default:
		p.skip(n, "unknown kind")
	}

	for _, c := range n.Children() {
		p.node(c)
	}
}

func (p *painter) box(n *scene.Node, radius float64) {
	if n.Width <= 0 || n.Height <= 0 {
		p.skip(n, "zero area")
		return
	}
	rad := clampRadius(radius, n.Width, n.Height)
	path := func() {
		if rad > 0 {
			p.dc.DrawRoundedRectangle(n.X, n.Y, n.Width, n.Height, rad)
		} else {
			p.dc.DrawRectangle(n.X, n.Y, n.Width, n.Height)
		}
	}

	if fill, ok := n.FirstFill(); ok {
		path()
		p.dc.SetColor(fill.Color.NRGBA())
		p.dc.Fill()
	}
	if stroke, ok := n.FirstStroke(); ok && n.StrokeWeight > 0 {
		path()
		p.dc.SetColor(stroke.Color.NRGBA())
		p.dc.SetLineWidth(n.StrokeWeight * p.zoom)
		p.dc.Stroke()
	}
}

func (p *painter) ellipse(n *scene.Node) {
	if n.Width <= 0 || n.Height <= 0 {
		p.skip(n, "zero area")
		return
	}
	fill, ok := n.FirstFill()
	if !ok {
		return
	}
	p.dc.DrawEllipse(n.X+n.Width/2, n.Y+n.Height/2, n.Width/2, n.Height/2)
	p.dc.SetColor(fill.Color.NRGBA())
	p.dc.Fill()
}

// text draws glyphs at device resolution: the anchor is transformed by
// hand and the face is sized by zoom, so scaled text stays sharp.
func (p *painter) text(n *scene.Node, d *scene.TextData) {
	if d.Characters == "" {
		return
	}
	if !(d.FontSize > 0) || math.IsInf(d.FontSize, 0) {
		p.skip(n, "bad font size")
		return
	}
	face, err := p.r.fonts.face(pickTypeface(d.FontFamily, d.FontWeight), d.FontSize*p.zoom)
	if err != nil {
		p.skip(n, err.Error())
		return
	}

	fill := scene.Solid(scene.Opaque(0, 0, 0))
	if f, ok := n.FirstFill(); ok {
		fill = f
	}

	anchor := p.vp.ToScreen(viewport.Point{X: n.X, Y: n.Y + d.FontSize})
	var ax float64
	switch d.Align {
	case scene.AlignCenter:
		ax = 0.5
	case scene.AlignRight:
		ax = 1
	}

	p.dc.Push()
	p.dc.Identity()
	p.dc.SetFontFace(face)
	p.dc.SetColor(fill.Color.NRGBA())
	p.dc.DrawStringAnchored(d.Characters, anchor.X, anchor.Y, ax, 0)
	p.dc.Pop()
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
