package scene

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a finding makes a node unpaintable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // structurally broken
	SeverityWarning                           // paintable, but something will be skipped
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if page-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// Validate checks a page for tree-shape and geometry problems. It is
// read-only. The renderer never requires a clean result; this exists for
// diagnostics.
func Validate(roots []*Node) []ValidationError {
	errs := validateTree(roots)
	if len(errs) > 0 {
		// Walking a broken tree could loop forever.
		return errs
	}
	for _, r := range roots {
		r.Walk(func(n *Node) bool {
			errs = append(errs, validateNode(n)...)
			return true
		})
	}
	return errs
}

// validateTree checks that every node is reachable exactly once using DFS
// with 3-color marking. A gray hit is a cycle, a black hit is sharing.
func validateTree(roots []*Node) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[*Node]int)
	var errs []ValidationError

	var visit func(n *Node) bool // returns false to stop
	visit = func(n *Node) bool {
		if n == nil {
			errs = append(errs, ValidationError{Message: "nil node in page", Severity: SeverityError})
			return true
		}
		switch color[n] {
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  "cycle detected: node is its own ancestor",
				Severity: SeverityError,
			})
			return false
		case black:
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  "node has more than one parent",
				Severity: SeverityError,
			})
			return true
		}

		color[n] = gray
		for _, c := range n.Children() {
			if !visit(c) {
				return false
			}
		}
		color[n] = black
		return true
	}

	for _, r := range roots {
		if !visit(r) {
			break
		}
	}
	return errs
}

func validateNode(n *Node) []ValidationError {
	if n == nil {
		return nil
	}
	var errs []ValidationError
	add := func(sev ValidationSeverity, format string, args ...any) {
		errs = append(errs, ValidationError{NodeID: n.ID, Message: fmt.Sprintf(format, args...), Severity: sev})
	}

	if n.Kind() == KindUnknown {
		add(SeverityWarning, "node has no recognised kind")
	}
	if !finite(n.X, n.Y, n.Width, n.Height) {
		add(SeverityError, "non-finite geometry (%g, %g, %g, %g)", n.X, n.Y, n.Width, n.Height)
	}
	if n.Width < 0 || n.Height < 0 {
		add(SeverityError, "negative size %gx%g", n.Width, n.Height)
	}

	switch d := n.Data.(type) {
	case *FrameData:
		if d.CornerRadius < 0 {
			add(SeverityError, "negative corner radius %g", d.CornerRadius)
		}
	case *RectangleData:
		if d.CornerRadius < 0 {
			add(SeverityError, "negative corner radius %g", d.CornerRadius)
		}
	case *TextData:
		if d.FontSize <= 0 || math.IsNaN(d.FontSize) {
			add(SeverityError, "font size must be positive, got %g", d.FontSize)
		}
		if d.Characters == "" {
			add(SeverityWarning, "text node has no characters")
		}
	}

	if n.Kind() != KindGroup && n.Kind() != KindUnknown && len(n.Fills) == 0 {
		add(SeverityWarning, "no fills; nothing will be painted for fill")
	}
	return errs
}
