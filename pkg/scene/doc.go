// Package scene defines the mock design-tool document for Koga.
// A Document is an ordered forest of Nodes (the "page"). Nodes are
// appended only; the whole page is cleared by Reset.
package scene
