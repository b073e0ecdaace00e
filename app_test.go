package main

import (
	"os"
	"strings"
	"testing"
)

// TestE2ECardExample exercises the full pipeline: script source → engine →
// page → renderer. This is the same path that the Wails Execute binding
// takes, but without the Wails runtime.
func TestE2ECardExample(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/card.lisp")
	if err != nil {
		t.Fatalf("failed to read card.lisp: %v", err)
	}

	result := app.Execute(string(source))

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("script error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	if !result.OK {
		t.Fatal("expected OK result")
	}

	// One frame on the page holding an avatar and two labels.
	if result.Status.Nodes != 1 {
		t.Fatalf("expected 1 top-level node, got %d", result.Status.Nodes)
	}
	if result.Status.Objects != 4 {
		t.Errorf("expected 4 objects, got %d", result.Status.Objects)
	}
	if len(result.Notifications) != 1 || result.Notifications[0] != "Card created" {
		t.Errorf("unexpected notifications: %v", result.Notifications)
	}
	if !result.Closed {
		t.Error("expected the plugin to close")
	}
	if !strings.HasPrefix(result.Image, "data:image/png;base64,") {
		t.Errorf("expected a PNG data URL, got %.40q", result.Image)
	}

	doc := app.Document()
	if doc[0].Name != "Card" {
		t.Errorf("expected frame named Card, got %q", doc[0].Name)
	}
	if kids := doc[0].Children(); len(kids) != 3 {
		t.Errorf("expected 3 children, got %d", len(kids))
	}
}

func TestE2ELandingExample(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/landing.lisp")
	if err != nil {
		t.Fatalf("failed to read landing.lisp: %v", err)
	}

	result := app.Execute(string(source))
	if !result.OK {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	// Header, logo, headline, dot group and button.
	if result.Status.Nodes != 5 {
		t.Fatalf("expected 5 top-level nodes, got %d", result.Status.Nodes)
	}
	if result.Status.Objects != 8 {
		t.Errorf("expected 8 objects, got %d", result.Status.Objects)
	}

	g := app.Document()[3]
	if g.Kind().String() != "GROUP" {
		t.Fatalf("expected the fourth node to be a group, got %s", g.Kind())
	}
	if g.X != 540 || g.Y != 300 || g.Width != 104 || g.Height != 24 {
		t.Errorf("group bounds = (%g, %g, %g, %g), want (540, 300, 104, 24)", g.X, g.Y, g.Width, g.Height)
	}
}

func TestE2EEmptySource(t *testing.T) {
	app := NewApp()
	result := app.Execute("")

	if !result.OK {
		t.Errorf("expected OK for empty source, got errors %+v", result.Errors)
	}
	if result.Status.Nodes != 0 {
		t.Errorf("expected 0 nodes for empty source, got %d", result.Status.Nodes)
	}
}

func TestE2ESyntaxError(t *testing.T) {
	app := NewApp()
	result := app.Execute("(appendChild (createFrame)")

	if result.OK {
		t.Fatal("expected a script error for unmatched parens")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error")
	}
	if result.Status.Nodes != 0 {
		t.Errorf("expected 0 nodes on syntax error, got %d", result.Status.Nodes)
	}
}
