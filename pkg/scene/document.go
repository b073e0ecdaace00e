package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrNilNode is returned when appending a nil node.
	ErrNilNode = errors.New("scene: nil node")
	// ErrAlreadyAttached is returned when a node is already part of the page.
	ErrAlreadyAttached = errors.New("scene: node already attached")
)

// Document is the page: an ordered sequence of top-level nodes.
// Root order is paint order. The zero value is an empty page.
type Document struct {
	mu    sync.RWMutex
	roots []*Node
	ids   map[NodeID]struct{} // every node reachable from roots
}

// NewDocument creates an empty page.
func NewDocument() *Document {
	return &Document{ids: make(map[NodeID]struct{})}
}

// AppendChild adds n as the last top-level node. Node shape is not
// validated; a node whose subtree is already on the page is rejected so
// the page stays a tree.
func (d *Document) AppendChild(n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, err := subtreeIDs(n)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := d.ids[id]; ok {
			return fmt.Errorf("%w: %s", ErrAlreadyAttached, id)
		}
	}
	if d.ids == nil {
		d.ids = make(map[NodeID]struct{})
	}
	for _, id := range ids {
		d.ids[id] = struct{}{}
	}
	d.roots = append(d.roots, n)
	return nil
}

// FindOne returns the first root node satisfying pred.
// pred runs without the document lock held, so it may call back into
// the document.
func (d *Document) FindOne(pred func(*Node) bool) (*Node, bool) {
	return lo.Find(d.Roots(), pred)
}

// FindAll returns every root node satisfying pred, in document order.
func (d *Document) FindAll(pred func(*Node) bool) []*Node {
	return lo.Filter(d.Roots(), func(n *Node, _ int) bool {
		return pred(n)
	})
}

// subtreeIDs lists the IDs of n and its descendants, rejecting a subtree
// that reaches the same node twice.
func subtreeIDs(n *Node) ([]NodeID, error) {
	seen := make(map[*Node]bool)
	var ids []NodeID
	var visit func(*Node) error
	visit = func(c *Node) error {
		if c == nil {
			return ErrNilNode
		}
		if seen[c] {
			return fmt.Errorf("%w: %s is reachable twice", ErrAlreadyAttached, c.ID)
		}
		seen[c] = true
		ids = append(ids, c.ID)
		for _, cc := range c.Children() {
			if err := visit(cc); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(n); err != nil {
		return nil, err
	}
	return ids, nil
}

// Reset clears the page.
func (d *Document) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roots = nil
	d.ids = make(map[NodeID]struct{})
}

// Roots returns a shallow copy of the top-level node slice.
func (d *Document) Roots() []*Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Node(nil), d.roots...)
}

// Snapshot returns a deep copy of the page for rendering.
func (d *Document) Snapshot() []*Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneAll(d.roots)
}

// Len returns the number of top-level nodes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.roots)
}

// Count returns the number of nodes reachable from the roots.
func (d *Document) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}

// Contains reports whether a node with the given ID is on the page.
func (d *Document) Contains(id NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[id]
	return ok
}
