package scene

import (
	"encoding/json"
	"fmt"
)

// nodeJSON is the wire shape of a node, matching the Figma plugin object
// layout (flat, optional per-kind fields).
type nodeJSON struct {
	ID                  NodeID      `json:"id"`
	Type                string      `json:"type"`
	Name                string      `json:"name"`
	X                   float64     `json:"x"`
	Y                   float64     `json:"y"`
	Width               float64     `json:"width"`
	Height              float64     `json:"height"`
	Fills               []paintJSON `json:"fills,omitempty"`
	Strokes             []paintJSON `json:"strokes,omitempty"`
	StrokeWeight        float64     `json:"strokeWeight,omitempty"`
	CornerRadius        *float64    `json:"cornerRadius,omitempty"`
	Characters          *string     `json:"characters,omitempty"`
	FontSize            float64     `json:"fontSize,omitempty"`
	FontFamily          string      `json:"fontFamily,omitempty"`
	FontWeight          string      `json:"fontWeight,omitempty"`
	TextAlignHorizontal string      `json:"textAlignHorizontal,omitempty"`
	Children            []*Node     `json:"children,omitempty"`
}

type paintJSON struct {
	Type  PaintType `json:"type"`
	Color colorJSON `json:"color"`
}

// colorJSON keeps alpha optional on the wire; a missing alpha is 1.
type colorJSON struct {
	R float64  `json:"r"`
	G float64  `json:"g"`
	B float64  `json:"b"`
	A *float64 `json:"a,omitempty"`
}

func toPaintJSON(ps []Paint) []paintJSON {
	if len(ps) == 0 {
		return nil
	}
	out := make([]paintJSON, len(ps))
	for i, p := range ps {
		a := p.Color.A
		out[i] = paintJSON{Type: p.Type, Color: colorJSON{R: p.Color.R, G: p.Color.G, B: p.Color.B, A: &a}}
	}
	return out
}

func fromPaintJSON(ps []paintJSON) []Paint {
	if len(ps) == 0 {
		return nil
	}
	out := make([]Paint, len(ps))
	for i, p := range ps {
		c := Opaque(p.Color.R, p.Color.G, p.Color.B)
		if p.Color.A != nil {
			c.A = *p.Color.A
		}
		typ := p.Type
		if typ == "" {
			typ = PaintSolid
		}
		out[i] = Paint{Type: typ, Color: c}
	}
	return out
}

// MarshalJSON encodes the node in the flat Figma plugin layout.
func (n *Node) MarshalJSON() ([]byte, error) {
	j := nodeJSON{
		ID:           n.ID,
		Type:         n.Kind().String(),
		Name:         n.Name,
		X:            n.X,
		Y:            n.Y,
		Width:        n.Width,
		Height:       n.Height,
		Fills:        toPaintJSON(n.Fills),
		Strokes:      toPaintJSON(n.Strokes),
		StrokeWeight: n.StrokeWeight,
		Children:     n.Children(),
	}
	switch d := n.Data.(type) {
	case *FrameData:
		r := d.CornerRadius
		j.CornerRadius = &r
	case *RectangleData:
		r := d.CornerRadius
		j.CornerRadius = &r
	case *TextData:
		chars := d.Characters
		j.Characters = &chars
		j.FontSize = d.FontSize
		j.FontFamily = d.FontFamily
		j.FontWeight = d.FontWeight
		j.TextAlignHorizontal = d.Align.String()
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes the flat Figma plugin layout. Unknown type tags
// decode to a node without a payload, which the renderer skips.
func (n *Node) UnmarshalJSON(b []byte) error {
	var j nodeJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*n = Node{
		ID:           j.ID,
		Name:         j.Name,
		X:            j.X,
		Y:            j.Y,
		Width:        j.Width,
		Height:       j.Height,
		Fills:        fromPaintJSON(j.Fills),
		Strokes:      fromPaintJSON(j.Strokes),
		StrokeWeight: j.StrokeWeight,
	}
	radius := 0.0
	if j.CornerRadius != nil {
		radius = *j.CornerRadius
	}
	switch ParseKind(j.Type) {
	case KindFrame:
		n.Data = &FrameData{CornerRadius: radius, Children: j.Children}
	case KindRectangle:
		n.Data = &RectangleData{CornerRadius: radius}
	case KindEllipse:
		n.Data = &EllipseData{}
	case KindText:
		td := &TextData{FontSize: j.FontSize, FontFamily: j.FontFamily, FontWeight: j.FontWeight}
		if j.Characters != nil {
			td.Characters = *j.Characters
		}
		if j.TextAlignHorizontal != "" {
			a, err := ParseTextAlign(j.TextAlignHorizontal)
			if err != nil {
				return fmt.Errorf("node %s: %w", j.ID, err)
			}
			td.Align = a
		}
		n.Data = td
	case KindGroup:
		n.Data = &GroupData{Children: j.Children}
	}
	return nil
}
