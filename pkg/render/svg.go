package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	svg "github.com/ajstarks/svgo"
	"github.com/chazu/koga/pkg/scene"
	"github.com/chazu/koga/pkg/viewport"
)

// RenderSVG writes the same scene as an SVG document. svgo takes integer
// coordinates, so geometry is rounded to whole document units; the
// viewport is applied as a group transform.
func (r *Renderer) RenderSVG(w io.Writer, nodes []*scene.Node, vp viewport.State, width, height int) error {
	zoom := vp.Zoom
	if !(zoom > 0) || math.IsInf(zoom, 0) {
		zoom = 1
	}

	sw := &errWriter{w: w}
	canvas := svg.New(sw)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+r.background.Hex())
	canvas.Gtransform(fmt.Sprintf("scale(%g) translate(%g,%g)", zoom, vp.Pan.X, vp.Pan.Y))

	if size, extent := r.gridSize, r.gridExtent; size > 0 && extent > 0 {
		canvas.Gstyle(fmt.Sprintf("stroke:%s;stroke-width:1", r.gridColor.Hex()))
		for x := 0.0; x < extent; x += size {
			canvas.Line(px(x), 0, px(x), px(extent))
		}
		for y := 0.0; y < extent; y += size {
			canvas.Line(0, px(y), px(extent), px(y))
		}
		canvas.Gend()
	}

	seen := make(map[*scene.Node]bool)
	var walk func(n *scene.Node)
	walk = func(n *scene.Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		if !finite(n.X, n.Y, n.Width, n.Height, n.StrokeWeight) {
			return
		}
		svgNode(canvas, n)
		for _, c := range n.Children() {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	canvas.Gend()
	canvas.End()
	return sw.err
}

func svgNode(canvas *svg.SVG, n *scene.Node) {
	switch d := n.Data.(type) {
	case *scene.FrameData:
		svgBox(canvas, n, d.CornerRadius)
	case *scene.RectangleData:
		svgBox(canvas, n, d.CornerRadius)
	case *scene.EllipseData:
		fill, ok := n.FirstFill()
		if !ok || n.Width <= 0 || n.Height <= 0 {
			return
		}
		canvas.Ellipse(px(n.X+n.Width/2), px(n.Y+n.Height/2), px(n.Width/2), px(n.Height/2), paintStyle("fill", fill))
	case *scene.TextData:
		if d.Characters == "" || !(d.FontSize > 0) {
			return
		}
		fill := scene.Solid(scene.Opaque(0, 0, 0))
		if f, ok := n.FirstFill(); ok {
			fill = f
		}
		anchor := map[scene.TextAlign]string{
			scene.AlignLeft:   "start",
			scene.AlignCenter: "middle",
			scene.AlignRight:  "end",
		}[d.Align]
		style := strings.Join([]string{
			paintStyle("fill", fill),
			"font-family:" + cssFamily(d.FontFamily),
			fmt.Sprintf("font-size:%gpx", d.FontSize),
			"font-weight:" + cssWeight(d.FontWeight),
			"text-anchor:" + anchor,
		}, ";")
		canvas.Text(px(n.X), px(n.Y+d.FontSize), d.Characters, style)
	}
}

func svgBox(canvas *svg.SVG, n *scene.Node, radius float64) {
	if n.Width <= 0 || n.Height <= 0 {
		return
	}
	var parts []string
	if fill, ok := n.FirstFill(); ok {
		parts = append(parts, paintStyle("fill", fill))
	} else {
		parts = append(parts, "fill:none")
	}
	if stroke, ok := n.FirstStroke(); ok && n.StrokeWeight > 0 {
		parts = append(parts, paintStyle("stroke", stroke), fmt.Sprintf("stroke-width:%g", n.StrokeWeight))
	}
	style := strings.Join(parts, ";")

	rad := px(clampRadius(radius, n.Width, n.Height))
	if rad > 0 {
		canvas.Roundrect(px(n.X), px(n.Y), px(n.Width), px(n.Height), rad, rad, style)
		return
	}
	canvas.Rect(px(n.X), px(n.Y), px(n.Width), px(n.Height), style)
}

// cssFamily quotes a font family for a style attribute. svgo writes
// styles unescaped and treats any "=" as raw attributes, so only letters,
// digits and a few separators survive.
func cssFamily(family string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" -_.", r) {
			return r
		}
		return -1
	}, family)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "sans-serif"
	}
	return "'" + clean + "'"
}

// cssWeight passes numeric weights through and maps anything else to 400.
func cssWeight(weight string) string {
	w, err := strconv.Atoi(strings.TrimSpace(weight))
	if err != nil || w < 1 || w > 1000 {
		return "400"
	}
	return strconv.Itoa(w)
}

func paintStyle(prop string, p scene.Paint) string {
	s := prop + ":" + p.Color.Hex()
	if a := p.Color.A; a < 1 {
		s += fmt.Sprintf(";%s-opacity:%g", prop, math.Max(0, a))
	}
	return s
}

func px(v float64) int {
	return int(math.Round(v))
}

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
