package scene

import (
	"fmt"
	"sync/atomic"
)

// NodeID is a process-unique identifier assigned when a node is created.
type NodeID string

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool {
	return id == ""
}

var nodeCounter uint64

// NewNodeID returns a fresh identifier of the form "<prefix>_<n>".
// n increases monotonically for the lifetime of the process.
func NewNodeID(prefix string) NodeID {
	n := atomic.AddUint64(&nodeCounter, 1)
	return NodeID(fmt.Sprintf("%s_%d", prefix, n))
}

// NodeKind enumerates the node types of the mock scene graph.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindFrame
	KindRectangle
	KindEllipse
	KindText
	KindGroup
)

func (k NodeKind) String() string {
	switch k {
	case KindFrame:
		return "FRAME"
	case KindRectangle:
		return "RECTANGLE"
	case KindEllipse:
		return "ELLIPSE"
	case KindText:
		return "TEXT"
	case KindGroup:
		return "GROUP"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps a Figma-style type tag back to a NodeKind.
func ParseKind(s string) NodeKind {
	switch s {
	case "FRAME":
		return KindFrame
	case "RECTANGLE":
		return KindRectangle
	case "ELLIPSE":
		return KindEllipse
	case "TEXT":
		return KindText
	case "GROUP":
		return KindGroup
	default:
		return KindUnknown
	}
}

// Node is one visual element of the page. Geometry is in document units
// with (X, Y) the top-left corner.
type Node struct {
	ID           NodeID
	Name         string
	X, Y         float64
	Width        float64
	Height       float64
	Fills        []Paint
	Strokes      []Paint
	StrokeWeight float64
	Data         NodeData
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// Kind derives the node kind from its payload. A node without a payload
// is KindUnknown.
func (n *Node) Kind() NodeKind {
	if n == nil {
		return KindUnknown
	}
	switch n.Data.(type) {
	case *FrameData:
		return KindFrame
	case *RectangleData:
		return KindRectangle
	case *EllipseData:
		return KindEllipse
	case *TextData:
		return KindText
	case *GroupData:
		return KindGroup
	default:
		return KindUnknown
	}
}

// Children returns the ordered child nodes. Only frames and groups have
// children.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	switch d := n.Data.(type) {
	case *FrameData:
		return d.Children
	case *GroupData:
		return d.Children
	}
	return nil
}

// FirstFill returns the first fill paint, which is the only one the
// renderer honours.
func (n *Node) FirstFill() (Paint, bool) {
	if n == nil || len(n.Fills) == 0 {
		return Paint{}, false
	}
	return n.Fills[0], true
}

// FirstStroke returns the first stroke paint.
func (n *Node) FirstStroke() (Paint, bool) {
	if n == nil || len(n.Strokes) == 0 {
		return Paint{}, false
	}
	return n.Strokes[0], true
}

// Walk visits n and its descendants depth-first in paint order.
// Returning false from fn stops descent into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Fills = append([]Paint(nil), n.Fills...)
	c.Strokes = append([]Paint(nil), n.Strokes...)
	switch d := n.Data.(type) {
	case *FrameData:
		fd := *d
		fd.Children = cloneAll(d.Children)
		c.Data = &fd
	case *RectangleData:
		rd := *d
		c.Data = &rd
	case *EllipseData:
		c.Data = &EllipseData{}
	case *TextData:
		td := *d
		c.Data = &td
	case *GroupData:
		gd := *d
		gd.Children = cloneAll(d.Children)
		c.Data = &gd
	}
	return &c
}

func cloneAll(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
