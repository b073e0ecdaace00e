package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ErrEmptyBounds is returned when a bounding box is requested for no nodes.
var ErrEmptyBounds = errors.New("scene: bounding box of zero nodes")

// Rect is an axis-aligned rectangle in document units.
type Rect struct {
	X, Y, Width, Height float64
}

// Box returns the node's own box.
func (n *Node) Box() Rect {
	return Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

func (r Rect) box2() sdf.Box2 {
	return sdf.Box2{
		Min: v2.Vec{X: r.X, Y: r.Y},
		Max: v2.Vec{X: r.X + r.Width, Y: r.Y + r.Height},
	}
}

// Bounds returns the union of the nodes' boxes:
// x = min(x_i), y = min(y_i), width = max(x_i+w_i) - x, height = max(y_i+h_i) - y.
// Nodes with non-finite geometry are rejected rather than producing NaN.
func Bounds(nodes []*Node) (Rect, error) {
	if len(nodes) == 0 {
		return Rect{}, ErrEmptyBounds
	}
	var bb sdf.Box2
	for i, n := range nodes {
		if n == nil {
			return Rect{}, ErrNilNode
		}
		r := n.Box()
		if !finite(r.X, r.Y, r.Width, r.Height) {
			return Rect{}, fmt.Errorf("scene: node %s has non-finite geometry", n.ID)
		}
		if i == 0 {
			bb = r.box2()
			continue
		}
		bb = bb.Extend(r.box2())
	}
	return Rect{
		X:      bb.Min.X,
		Y:      bb.Min.Y,
		Width:  bb.Max.X - bb.Min.X,
		Height: bb.Max.Y - bb.Min.Y,
	}, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
