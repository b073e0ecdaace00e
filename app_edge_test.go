package main

import (
	"encoding/json"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Result shape: slices are non-nil so JSON carries [] rather than null.
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	app := NewApp()
	result := app.Execute("")

	if result.Errors == nil {
		t.Error("Errors should be non-nil empty slice, got nil")
	}
	if result.Notifications == nil {
		t.Error("Notifications should be non-nil empty slice, got nil")
	}
	if result.Image == "" {
		t.Error("an empty page still renders")
	}

	b, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"errors":[]`) {
		t.Errorf("expected empty errors array in %s", b)
	}
}

func TestE2ECommentsOnly(t *testing.T) {
	app := NewApp()
	result := app.Execute("; nothing to do\n// still nothing\n")
	if !result.OK {
		t.Errorf("expected OK, got %+v", result.Errors)
	}
}

func TestE2EWhitespaceOnly(t *testing.T) {
	app := NewApp()
	result := app.Execute("   \n\t\n  ")
	if !result.OK || result.Status.Nodes != 0 {
		t.Errorf("expected an untouched page, got ok=%v nodes=%d", result.OK, result.Status.Nodes)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestE2EErrorKeepsEarlierEffects(t *testing.T) {
	app := NewApp()
	result := app.Execute("(appendChild (createRectangle))\n(appendChild (createEllipse))\n(group (list))")

	if result.OK {
		t.Fatal("expected an error for an empty group")
	}
	if result.Status.Nodes != 2 {
		t.Errorf("expected 2 nodes kept from before the error, got %d", result.Status.Nodes)
	}
	if !strings.Contains(result.Errors[0].Message, "at least one node") {
		t.Errorf("unexpected message %q", result.Errors[0].Message)
	}
}

func TestE2EUndefinedFunction(t *testing.T) {
	app := NewApp()
	result := app.Execute("(createStar)")
	if result.OK || len(result.Errors) == 0 {
		t.Fatal("expected an error for an unknown host function")
	}
	if result.Errors[0].Message == "" {
		t.Error("error should have a non-empty message")
	}
}

func TestE2EAppendTwice(t *testing.T) {
	app := NewApp()
	result := app.Execute("(def r (createRectangle))\n(appendChild r)\n(appendChild r)")
	if result.OK {
		t.Fatal("expected an error appending the same node twice")
	}
	if result.Status.Nodes != 1 {
		t.Errorf("expected 1 node, got %d", result.Status.Nodes)
	}
}

func TestE2EInvalidProperty(t *testing.T) {
	app := NewApp()
	result := app.Execute("(appendChild (createEllipse :cornerRadius 4))")
	if result.OK {
		t.Fatal("ellipses have no corner radius")
	}
	if result.Status.Nodes != 0 {
		t.Errorf("expected nothing appended, got %d", result.Status.Nodes)
	}
}

// ---------------------------------------------------------------------------
// Repeated execution accumulates on the same page until reset.
// ---------------------------------------------------------------------------

func TestE2ERapidExecution(t *testing.T) {
	app := NewApp()
	for i := 0; i < 20; i++ {
		result := app.Execute("(appendChild (createRectangle))")
		if !result.OK {
			t.Fatalf("run %d: %+v", i, result.Errors)
		}
	}
	if n := app.Status().Nodes; n != 20 {
		t.Errorf("expected 20 nodes, got %d", n)
	}

	app.Reset()
	if n := app.Status().Nodes; n != 0 {
		t.Errorf("expected an empty page after reset, got %d", n)
	}
}

func TestE2EFindAcrossExecutions(t *testing.T) {
	app := NewApp()
	app.Execute(`(appendChild (createText :name "Title"))`)
	result := app.Execute(`(def title (findOne (fn [n] (== (getProp n :name) "Title"))))
(notify (getProp title :characters))`)
	if !result.OK {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Notifications) != 1 || result.Notifications[0] != "Hello World" {
		t.Errorf("unexpected notifications %v", result.Notifications)
	}
}

// ---------------------------------------------------------------------------
// Toolbar bindings
// ---------------------------------------------------------------------------

func TestE2EViewBindings(t *testing.T) {
	app := NewApp()

	if z := app.ZoomIn().Status.ZoomPercent; z != 120 {
		t.Errorf("zoom in: expected 120%%, got %d%%", z)
	}
	if z := app.ZoomOut().Status.ZoomPercent; z != 100 {
		t.Errorf("zoom out: expected 100%%, got %d%%", z)
	}
	for i := 0; i < 30; i++ {
		app.ZoomIn()
	}
	if z := app.Status().ZoomPercent; z != 500 {
		t.Errorf("zoom should clamp at 500%%, got %d%%", z)
	}

	r := app.Pan(15, -5)
	if r.Error != "" || r.Image == "" {
		t.Errorf("pan: %+v", r)
	}

	if r := app.SetTool("frame"); r.Error != "" || r.Status.Tool != "frame" {
		t.Errorf("set tool: %+v", r.Status)
	}
	if r := app.SetTool("pen"); r.Error == "" {
		t.Error("expected an error for an unknown tool")
	}

	if r := app.Reset(); r.Status.ZoomPercent != 100 || r.Status.Tool != "frame" {
		t.Errorf("reset should restore zoom and keep the tool, got %+v", r.Status)
	}
}

func TestE2ERenderSVG(t *testing.T) {
	app := NewApp()
	app.Execute(`(appendChild (createText :characters "hello svg"))`)
	svg := app.RenderSVG()
	if !strings.Contains(svg, "hello svg") {
		t.Errorf("expected text in SVG output, got %.200s", svg)
	}
}
