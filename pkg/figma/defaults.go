package figma

import "github.com/chazu/koga/pkg/scene"

// Factory defaults, matching what the design tool hands a plugin.

func newFrame() *scene.Node {
	return &scene.Node{
		ID:           scene.NewNodeID("frame"),
		Name:         "Frame",
		X:            100,
		Y:            100,
		Width:        200,
		Height:       200,
		Fills:        []scene.Paint{scene.Solid(scene.Opaque(1, 1, 1))},
		Strokes:      []scene.Paint{scene.Solid(scene.Opaque(0.8, 0.8, 0.8))},
		StrokeWeight: 1,
		Data:         &scene.FrameData{},
	}
}

func newRectangle() *scene.Node {
	return &scene.Node{
		ID:     scene.NewNodeID("rect"),
		Name:   "Rectangle",
		X:      150,
		Y:      150,
		Width:  100,
		Height: 100,
		Fills:  []scene.Paint{scene.Solid(scene.Opaque(0.2, 0.4, 0.8))},
		Data:   &scene.RectangleData{},
	}
}

func newEllipse() *scene.Node {
	return &scene.Node{
		ID:     scene.NewNodeID("ellipse"),
		Name:   "Ellipse",
		X:      150,
		Y:      150,
		Width:  100,
		Height: 100,
		Fills:  []scene.Paint{scene.Solid(scene.Opaque(0.8, 0.2, 0.4))},
		Data:   &scene.EllipseData{},
	}
}

func newText() *scene.Node {
	return &scene.Node{
		ID:     scene.NewNodeID("text"),
		Name:   "Text",
		X:      150,
		Y:      150,
		Width:  100,
		Height: 30,
		Fills:  []scene.Paint{scene.Solid(scene.Opaque(0, 0, 0))},
		Data: &scene.TextData{
			Characters: "Hello World",
			FontSize:   16,
			FontFamily: "Inter",
			FontWeight: "400",
			Align:      scene.AlignLeft,
		},
	}
}
