package figma

import (
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/koga/pkg/scene"
)

// Properties scripts may read. All but id, type and children are writable.
var Properties = []string{
	"id", "type", "name", "x", "y", "width", "height",
	"fills", "strokes", "strokeWeight", "cornerRadius",
	"characters", "fontSize", "fontFamily", "fontWeight", "textAlignHorizontal",
	"children",
}

// Set assigns a property on a node that is not yet on the page. Direct
// children of a group are fixed once grouped, since the group's box is
// their union. Values are float64 for numbers, string for text, and
// []scene.Paint (or a single scene.Paint) for fills and strokes.
func (a *API) Set(id scene.NodeID, prop string, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.mutable(id)
	if err != nil {
		return err
	}
	if p, ok := a.parent[id]; ok && a.nodes[p].Kind() == scene.KindGroup {
		return fmt.Errorf("%w: %s is a child of group %s", ErrNodeOwned, id, p)
	}
	if err := setProp(n, prop, v); err != nil {
		return fmt.Errorf("%s.%s: %w", id, prop, err)
	}
	return nil
}

// Get reads a property. children yields []scene.NodeID and registers the
// children as handles.
func (a *API) Get(id scene.NodeID, prop string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.lookup(id)
	if err != nil {
		return nil, err
	}
	if prop == "children" {
		kids := n.Children()
		ids := make([]scene.NodeID, len(kids))
		for i, c := range kids {
			a.nodes[c.ID] = c
			ids[i] = c.ID
		}
		return ids, nil
	}
	v, err := getProp(n, prop)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", id, prop, err)
	}
	return v, nil
}

func getProp(n *scene.Node, prop string) (any, error) {
	switch prop {
	case "id":
		return string(n.ID), nil
	case "type":
		return n.Kind().String(), nil
	case "name":
		return n.Name, nil
	case "x":
		return n.X, nil
	case "y":
		return n.Y, nil
	case "width":
		return n.Width, nil
	case "height":
		return n.Height, nil
	case "fills":
		return append([]scene.Paint(nil), n.Fills...), nil
	case "strokes":
		return append([]scene.Paint(nil), n.Strokes...), nil
	case "strokeWeight":
		return n.StrokeWeight, nil
	}

	switch d := n.Data.(type) {
	case *scene.FrameData:
		if prop == "cornerRadius" {
			return d.CornerRadius, nil
		}
	case *scene.RectangleData:
		if prop == "cornerRadius" {
			return d.CornerRadius, nil
		}
	case *scene.TextData:
		switch prop {
		case "characters":
			return d.Characters, nil
		case "fontSize":
			return d.FontSize, nil
		case "fontFamily":
			return d.FontFamily, nil
		case "fontWeight":
			return d.FontWeight, nil
		case "textAlignHorizontal":
			return d.Align.String(), nil
		}
	}
	return nil, fmt.Errorf("%w %q on %s", ErrUnsupportedProperty, prop, n.Kind())
}

func setProp(n *scene.Node, prop string, v any) error {
	switch prop {
	case "name":
		s, err := asString(v)
		if err != nil {
			return err
		}
		n.Name = s
		return nil
	case "x":
		return setNumber(&n.X, v, anyFinite)
	case "y":
		return setNumber(&n.Y, v, anyFinite)
	case "width":
		return setNumber(&n.Width, v, nonNegative)
	case "height":
		return setNumber(&n.Height, v, nonNegative)
	case "strokeWeight":
		return setNumber(&n.StrokeWeight, v, anyFinite)
	case "fills":
		ps, err := asPaints(v)
		if err != nil {
			return err
		}
		n.Fills = ps
		return nil
	case "strokes":
		ps, err := asPaints(v)
		if err != nil {
			return err
		}
		n.Strokes = ps
		return nil
	case "id", "type", "children":
		return fmt.Errorf("%w: %q is read-only", ErrUnsupportedProperty, prop)
	}

	switch d := n.Data.(type) {
	case *scene.FrameData:
		if prop == "cornerRadius" {
			return setNumber(&d.CornerRadius, v, nonNegative)
		}
	case *scene.RectangleData:
		if prop == "cornerRadius" {
			return setNumber(&d.CornerRadius, v, nonNegative)
		}
	case *scene.TextData:
		switch prop {
		case "characters":
			s, err := asString(v)
			if err != nil {
				return err
			}
			d.Characters = s
			return nil
		case "fontSize":
			return setNumber(&d.FontSize, v, positive)
		case "fontFamily":
			s, err := asString(v)
			if err != nil {
				return err
			}
			d.FontFamily = s
			return nil
		case "fontWeight":
			// Scripts write both 700 and "700".
			if f, ok := v.(float64); ok {
				v = strconv.FormatFloat(f, 'f', -1, 64)
			}
			s, err := asString(v)
			if err != nil {
				return err
			}
			if _, err := strconv.Atoi(s); err != nil {
				return fmt.Errorf("%w: font weight %q is not numeric", ErrInvalidValue, s)
			}
			d.FontWeight = s
			return nil
		case "textAlignHorizontal":
			s, err := asString(v)
			if err != nil {
				return err
			}
			al, err := scene.ParseTextAlign(s)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			d.Align = al
			return nil
		}
	}
	return fmt.Errorf("%w %q on %s", ErrUnsupportedProperty, prop, n.Kind())
}

// ---------------------------------------------------------------------------
// Value checks
// ---------------------------------------------------------------------------

type numberCheck func(float64) error

func anyFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %g is not finite", ErrInvalidValue, f)
	}
	return nil
}

func nonNegative(f float64) error {
	if err := anyFinite(f); err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("%w: %g is negative", ErrInvalidValue, f)
	}
	return nil
}

func positive(f float64) error {
	if err := anyFinite(f); err != nil {
		return err
	}
	if f <= 0 {
		return fmt.Errorf("%w: %g is not positive", ErrInvalidValue, f)
	}
	return nil
}

func setNumber(dst *float64, v any, check numberCheck) error {
	f, ok := v.(float64)
	if !ok {
		return fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, v)
	}
	if err := check(f); err != nil {
		return err
	}
	*dst = f
	return nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, v)
	}
	return s, nil
}

func asPaints(v any) ([]scene.Paint, error) {
	switch p := v.(type) {
	case scene.Paint:
		return []scene.Paint{p}, nil
	case []scene.Paint:
		return append([]scene.Paint(nil), p...), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: expected paint list, got %T", ErrInvalidValue, v)
}
