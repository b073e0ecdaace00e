package scene

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// PaintType enumerates paint kinds. Only solid paints exist in the mock.
type PaintType string

const PaintSolid PaintType = "SOLID"

// Color is an RGBA colour with float channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Opaque returns a colour with alpha 1.
func Opaque(r, g, b float64) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// ParseHex parses "#rrggbb" (or "#rgb") into an opaque colour.
func ParseHex(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return Opaque(c.R, c.G, c.B), nil
}

// Hex formats the colour as "#rrggbb", dropping alpha.
func (c Color) Hex() string {
	r, g, b, _ := c.RGBA8()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// RGBA8 maps each channel from [0,1] to [0,255]. Out-of-range and NaN
// channels are clamped.
func (c Color) RGBA8() (r, g, b, a uint8) {
	return channel8(c.R), channel8(c.G), channel8(c.B), channel8(c.A)
}

// NRGBA converts to a non-premultiplied image colour.
func (c Color) NRGBA() color.NRGBA {
	r, g, b, a := c.RGBA8()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

func channel8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Paint is a single fill or stroke entry.
type Paint struct {
	Type  PaintType `json:"type"`
	Color Color     `json:"color"`
}

// Solid returns a solid paint of the given colour.
func Solid(c Color) Paint {
	return Paint{Type: PaintSolid, Color: c}
}
