package viewport

import (
	"math"
	"testing"

	"github.com/chazu/koga/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoomInOutRoundTrip(t *testing.T) {
	c := New(nil)
	for _, start := range []float64{1, 0.5, 2, 3.3} {
		c.SetZoom(start)
		c.ZoomIn()
		got := c.ZoomOut()
		assert.InDelta(t, start, got, 1e-9, "start %g", start)
	}
}

func TestZoomSteps(t *testing.T) {
	c := New(nil)
	assert.InDelta(t, 1.2, c.ZoomIn(), 1e-12)
	assert.Equal(t, 120, c.ZoomPercent())
	c.ZoomOut()
	c.ZoomOut()
	assert.Equal(t, 83, c.ZoomPercent())
}

func TestZoomClamped(t *testing.T) {
	c := New(nil)
	for i := 0; i < 50; i++ {
		c.ZoomIn()
	}
	assert.Equal(t, DefaultMaxZoom, c.State().Zoom)
	assert.Equal(t, 500, c.ZoomPercent())

	for i := 0; i < 100; i++ {
		c.ZoomOut()
	}
	assert.Equal(t, DefaultMinZoom, c.State().Zoom)
	assert.Equal(t, 10, c.ZoomPercent())

	assert.Equal(t, DefaultMinZoom, c.SetZoom(math.NaN()))
	assert.Equal(t, DefaultMaxZoom, c.SetZoom(100))
}

func TestWithLimits(t *testing.T) {
	c := New(nil, WithLimits(Limits{Step: 2, Min: 0.5, Max: 4}))
	assert.Equal(t, 2.0, c.ZoomIn())
	assert.Equal(t, 4.0, c.ZoomIn())
	assert.Equal(t, 4.0, c.ZoomIn())

	bad := New(nil, WithLimits(Limits{Step: 0.5, Min: 1, Max: 2}))
	assert.InDelta(t, 1.2, bad.ZoomIn(), 1e-12)
}

func TestPan(t *testing.T) {
	c := New(nil)
	c.PanBy(10, -5)
	c.PanBy(2, 2)
	assert.Equal(t, Point{X: 12, Y: -3}, c.State().Pan)

	c.PanBy(math.Inf(1), 0)
	assert.Equal(t, Point{X: 12, Y: -3}, c.State().Pan)

	c.SetPan(Point{X: 1, Y: 1})
	assert.Equal(t, Point{X: 1, Y: 1}, c.State().Pan)
}

func TestTransformOrder(t *testing.T) {
	s := State{Zoom: 2, Pan: Point{X: 10, Y: 0}}
	// Scale applies to the panned point: 2*(5+10).
	assert.Equal(t, Point{X: 30, Y: 8}, s.ToScreen(Point{X: 5, Y: 4}))
	assert.Equal(t, Point{X: 5, Y: 4}, s.ToDocument(Point{X: 30, Y: 8}))
}

func TestTools(t *testing.T) {
	c := New(nil)
	assert.Equal(t, ToolSelect, c.State().Tool)

	require.NoError(t, c.SetTool(ToolEllipse))
	assert.Equal(t, ToolEllipse, c.State().Tool)

	err := c.SetTool("lasso")
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Equal(t, ToolEllipse, c.State().Tool)

	tool, err := ParseTool(" Rectangle ")
	require.NoError(t, err)
	assert.Equal(t, ToolRectangle, tool)
}

func TestResetClearsDocument(t *testing.T) {
	doc := scene.NewDocument()
	require.NoError(t, doc.AppendChild(&scene.Node{ID: "r_1", Width: 1, Height: 1, Data: &scene.RectangleData{}}))

	c := New(doc)
	c.ZoomIn()
	c.PanBy(40, 40)
	require.NoError(t, c.SetTool(ToolText))

	c.Reset()
	st := c.State()
	assert.Equal(t, 1.0, st.Zoom)
	assert.Equal(t, Point{}, st.Pan)
	assert.Equal(t, ToolText, st.Tool)
	assert.Equal(t, 0, doc.Len())
}
