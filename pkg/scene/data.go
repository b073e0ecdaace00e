package scene

import "fmt"

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

// FrameData is a container with its own fill and optional rounded corners.
type FrameData struct {
	CornerRadius float64 `json:"cornerRadius"`
	Children     []*Node `json:"children"`
}

func (*FrameData) nodeData() {}

// ---------------------------------------------------------------------------
// Rectangle
// ---------------------------------------------------------------------------

// RectangleData is a filled box with optional rounded corners.
type RectangleData struct {
	CornerRadius float64 `json:"cornerRadius"`
}

func (*RectangleData) nodeData() {}

// ---------------------------------------------------------------------------
// Ellipse
// ---------------------------------------------------------------------------

// EllipseData is an ellipse inscribed in the node's bounding box.
type EllipseData struct{}

func (*EllipseData) nodeData() {}

// ---------------------------------------------------------------------------
// Text
// ---------------------------------------------------------------------------

// TextAlign is the horizontal alignment of a text node.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

func (a TextAlign) String() string {
	switch a {
	case AlignCenter:
		return "CENTER"
	case AlignRight:
		return "RIGHT"
	default:
		return "LEFT"
	}
}

// ParseTextAlign accepts the Figma tags LEFT, CENTER and RIGHT.
func ParseTextAlign(s string) (TextAlign, error) {
	switch s {
	case "LEFT":
		return AlignLeft, nil
	case "CENTER":
		return AlignCenter, nil
	case "RIGHT":
		return AlignRight, nil
	}
	return AlignLeft, fmt.Errorf("invalid text alignment %q, expected LEFT, CENTER or RIGHT", s)
}

// TextData carries the string and typography of a text node.
type TextData struct {
	Characters string    `json:"characters"`
	FontSize   float64   `json:"fontSize"`
	FontFamily string    `json:"fontFamily"`
	FontWeight string    `json:"fontWeight"` // CSS-style numeric weight, "400", "700"
	Align      TextAlign `json:"textAlignHorizontal"`
}

func (*TextData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData has no paint of its own; its geometry is the bounding box of
// its children at the time the group was made.
type GroupData struct {
	Children []*Node `json:"children"`
}

func (*GroupData) nodeData() {}
