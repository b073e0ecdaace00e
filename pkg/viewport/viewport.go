// Package viewport holds the canvas view state: zoom, pan and the active
// drawing tool. Zoom is clamped; pan is in document units.
package viewport

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Default zoom behaviour.
const (
	DefaultZoomStep = 1.2
	DefaultMinZoom  = 0.1
	DefaultMaxZoom  = 5.0
)

// ErrUnknownTool is returned for a tool name outside the toolbar set.
var ErrUnknownTool = errors.New("viewport: unknown tool")

// Tool is the active toolbar tool. It only labels the status readout;
// pointer interaction is outside the core.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolFrame     Tool = "frame"
	ToolText      Tool = "text"
	ToolRectangle Tool = "rectangle"
	ToolEllipse   Tool = "ellipse"
)

// Tools lists the toolbar in display order.
var Tools = []Tool{ToolSelect, ToolFrame, ToolText, ToolRectangle, ToolEllipse}

// ParseTool accepts a tool name in any case.
func ParseTool(s string) (Tool, error) {
	t := Tool(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tools {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// Point is a 2D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is an immutable copy of the view.
type State struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
	Tool Tool    `json:"tool"`
}

// Identity is the initial view: zoom 1, no pan, select tool.
func Identity() State {
	return State{Zoom: 1, Tool: ToolSelect}
}

// ToScreen maps a document point to screen space: zoom·(p + pan).
func (s State) ToScreen(p Point) Point {
	return Point{X: s.Zoom * (p.X + s.Pan.X), Y: s.Zoom * (p.Y + s.Pan.Y)}
}

// ToDocument is the inverse of ToScreen.
func (s State) ToDocument(p Point) Point {
	return Point{X: p.X/s.Zoom - s.Pan.X, Y: p.Y/s.Zoom - s.Pan.Y}
}

// ZoomPercent is the zoom as a rounded percentage.
func (s State) ZoomPercent() int {
	return int(math.Round(s.Zoom * 100))
}

// Limits bound the zoom factor.
type Limits struct {
	Step float64
	Min  float64
	Max  float64
}

// DefaultLimits returns the stock zoom limits.
func DefaultLimits() Limits {
	return Limits{Step: DefaultZoomStep, Min: DefaultMinZoom, Max: DefaultMaxZoom}
}

func (l Limits) clamp(z float64) float64 {
	return math.Max(l.Min, math.Min(l.Max, z))
}

// Clearer is the document the viewport resets along with itself.
type Clearer interface {
	Reset()
}

// Controller owns the view state. It is safe for concurrent use.
type Controller struct {
	doc    Clearer
	limits Limits

	mu    sync.RWMutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimits overrides the zoom limits. Invalid limits are ignored.
func WithLimits(l Limits) Option {
	return func(c *Controller) {
		if l.Step > 1 && l.Min > 0 && l.Max >= l.Min {
			c.limits = l
		}
	}
}

// New creates a controller at the identity view. doc may be nil, in which
// case Reset only resets the view.
func New(doc Clearer, opts ...Option) *Controller {
	c := &Controller{doc: doc, limits: DefaultLimits(), state: Identity()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a copy of the current view.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ZoomPercent is the current zoom as a rounded percentage.
func (c *Controller) ZoomPercent() int {
	return c.State().ZoomPercent()
}

// ZoomIn multiplies zoom by the step, up to the maximum.
func (c *Controller) ZoomIn() float64 {
	return c.setZoom(func(z float64) float64 { return z * c.limits.Step })
}

// ZoomOut divides zoom by the step, down to the minimum.
func (c *Controller) ZoomOut() float64 {
	return c.setZoom(func(z float64) float64 { return z / c.limits.Step })
}

// SetZoom sets an absolute zoom, clamped to the limits. Non-finite values
// are ignored.
func (c *Controller) SetZoom(z float64) float64 {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return c.State().Zoom
	}
	return c.setZoom(func(float64) float64 { return z })
}

func (c *Controller) setZoom(f func(float64) float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Zoom = c.limits.clamp(f(c.state.Zoom))
	return c.state.Zoom
}

// PanBy moves the view by a document-space offset.
func (c *Controller) PanBy(dx, dy float64) {
	if !finite(dx, dy) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Pan.X += dx
	c.state.Pan.Y += dy
}

// SetPan sets the absolute pan offset.
func (c *Controller) SetPan(p Point) {
	if !finite(p.X, p.Y) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Pan = p
}

// SetTool selects the active tool.
func (c *Controller) SetTool(t Tool) error {
	t, err := ParseTool(string(t))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Tool = t
	return nil
}

// Reset returns to zoom 1 and no pan, and clears the document. The active
// tool is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	tool := c.state.Tool
	c.state = Identity()
	c.state.Tool = tool
	c.mu.Unlock()

	if c.doc != nil {
		c.doc.Reset()
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
