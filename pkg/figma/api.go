// Package figma implements the host API that generated plugin scripts see.
// It is a partial mock: four shape factories, grouping, a flat
// append-only page, and two lifecycle hooks. Scripts hold nodes only as
// NodeID handles into the API's arena; nodes are mutable until they reach
// the page.
package figma

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chazu/koga/pkg/scene"
)

var (
	ErrEmptyGroup          = errors.New("figma: group requires at least one node")
	ErrUnknownNode         = errors.New("figma: unknown node")
	ErrNodeAttached        = errors.New("figma: node is already on the page")
	ErrNodeOwned           = errors.New("figma: node already has a parent")
	ErrNotContainer        = errors.New("figma: node cannot have children")
	ErrUnsupportedProperty = errors.New("figma: unsupported property")
	ErrInvalidValue        = errors.New("figma: invalid value")
	ErrRevoked             = errors.New("figma: host API revoked")
)

// API is the capability object handed to one script execution.
// It is safe for concurrent use, though a script drives it from a single
// goroutine; Revoke may arrive from another.
type API struct {
	doc *scene.Document
	log *slog.Logger

	mu            sync.Mutex
	nodes         map[scene.NodeID]*scene.Node
	parent        map[scene.NodeID]scene.NodeID
	notifications []string
	appended      int
	closed        bool
	revoked       bool
}

// Option configures an API.
type Option func(*API)

// WithLogger routes notify messages to l.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.log = l }
}

// New creates a host API over doc.
func New(doc *scene.Document, opts ...Option) *API {
	a := &API{
		doc:    doc,
		log:    slog.Default(),
		nodes:  make(map[scene.NodeID]*scene.Node),
		parent: make(map[scene.NodeID]scene.NodeID),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// ---------------------------------------------------------------------------
// Factories
// ---------------------------------------------------------------------------

// CreateFrame returns a handle to a new, unattached frame.
func (a *API) CreateFrame() (scene.NodeID, error) { return a.create(newFrame()) }

// CreateRectangle returns a handle to a new, unattached rectangle.
func (a *API) CreateRectangle() (scene.NodeID, error) { return a.create(newRectangle()) }

// CreateEllipse returns a handle to a new, unattached ellipse.
func (a *API) CreateEllipse() (scene.NodeID, error) { return a.create(newEllipse()) }

// CreateText returns a handle to a new, unattached text node.
func (a *API) CreateText() (scene.NodeID, error) { return a.create(newText()) }

func (a *API) create(n *scene.Node) (scene.NodeID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked {
		return "", ErrRevoked
	}
	a.nodes[n.ID] = n
	return n.ID, nil
}

// ---------------------------------------------------------------------------
// currentPage
// ---------------------------------------------------------------------------

// AppendChild places the node (and its subtree) on the page.
func (a *API) AppendChild(id scene.NodeID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.lookup(id)
	if err != nil {
		return err
	}
	if p, ok := a.parent[id]; ok {
		return fmt.Errorf("%w: %s is a child of %s", ErrNodeOwned, id, p)
	}
	if err := a.doc.AppendChild(n); err != nil {
		if errors.Is(err, scene.ErrAlreadyAttached) {
			return fmt.Errorf("%w: %s", ErrNodeAttached, id)
		}
		return err
	}
	a.appended++
	return nil
}

// FindOne returns the first top-level page node satisfying pred.
// pred is called without the API lock held, and every candidate is
// registered before pred sees it so pred may read it by handle.
func (a *API) FindOne(pred func(*scene.Node) bool) (scene.NodeID, bool, error) {
	if err := a.check(); err != nil {
		return "", false, err
	}
	n, ok := a.doc.FindOne(a.registering(pred))
	if !ok {
		return "", false, nil
	}
	return n.ID, true, nil
}

// FindAll returns every top-level page node satisfying pred.
func (a *API) FindAll(pred func(*scene.Node) bool) ([]scene.NodeID, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	found := a.doc.FindAll(a.registering(pred))
	ids := make([]scene.NodeID, len(found))
	for i, n := range found {
		ids[i] = n.ID
	}
	return ids, nil
}

func (a *API) registering(pred func(*scene.Node) bool) func(*scene.Node) bool {
	return func(n *scene.Node) bool {
		a.register(n)
		return pred(n)
	}
}

// Node exposes a read-only view of a handle for predicates. The returned
// pointer must not be mutated.
func (a *API) Node(id scene.NodeID) (*scene.Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookup(id)
}

// register makes a page node addressable by handle. Its descendants are
// registered too so scripts can read them.
func (a *API) register(n *scene.Node) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n.Walk(func(c *scene.Node) bool {
		a.nodes[c.ID] = c
		return true
	})
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

// Group wraps the nodes in a new Group whose geometry is their bounding
// box. The inputs become the group's children and must be free: not on
// the page and not already inside another container.
func (a *API) Group(ids []scene.NodeID) (scene.NodeID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked {
		return "", ErrRevoked
	}
	if len(ids) == 0 {
		return "", ErrEmptyGroup
	}

	children := make([]*scene.Node, 0, len(ids))
	seen := make(map[scene.NodeID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return "", fmt.Errorf("%w: %s listed twice", ErrInvalidValue, id)
		}
		seen[id] = true
		n, err := a.free(id)
		if err != nil {
			return "", err
		}
		children = append(children, n)
	}

	bb, err := scene.Bounds(children)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	g := &scene.Node{
		ID:     scene.NewNodeID("group"),
		Name:   "Group",
		X:      bb.X,
		Y:      bb.Y,
		Width:  bb.Width,
		Height: bb.Height,
		Data:   &scene.GroupData{Children: children},
	}
	a.nodes[g.ID] = g
	for _, c := range children {
		a.parent[c.ID] = g.ID
	}
	return g.ID, nil
}

// AddChild appends child to a frame's children. Both must be off the page;
// child must not already have a parent.
func (a *API) AddChild(parentID, childID scene.NodeID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, err := a.mutable(parentID)
	if err != nil {
		return err
	}
	fd, ok := p.Data.(*scene.FrameData)
	if !ok {
		return fmt.Errorf("%w: %s is a %s", ErrNotContainer, parentID, p.Kind())
	}
	c, err := a.free(childID)
	if err != nil {
		return err
	}
	for anc := parentID; anc != ""; anc = a.parent[anc] {
		if anc == childID {
			return fmt.Errorf("%w: %s would contain itself", ErrInvalidValue, childID)
		}
	}
	fd.Children = append(fd.Children, c)
	a.parent[childID] = parentID
	return nil
}

// ---------------------------------------------------------------------------
// Lifecycle hooks
// ---------------------------------------------------------------------------

// Notify records a user-facing message.
func (a *API) Notify(msg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked {
		return ErrRevoked
	}
	a.notifications = append(a.notifications, msg)
	a.log.Info("figma notification", "message", msg)
	return nil
}

// ClosePlugin records that the script declared itself done. It does not
// stop the script or the host.
func (a *API) ClosePlugin() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked {
		return ErrRevoked
	}
	a.closed = true
	a.log.Debug("plugin closed")
	return nil
}

// Revoke makes every later call fail with ErrRevoked.
func (a *API) Revoke() {
	a.mu.Lock()
	a.revoked = true
	a.mu.Unlock()
}

// Revoked reports whether Revoke was called.
func (a *API) Revoked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revoked
}

// Notifications returns the messages passed to Notify, in order.
func (a *API) Notifications() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.notifications...)
}

// Closed reports whether ClosePlugin was called.
func (a *API) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Appended returns the number of successful AppendChild calls.
func (a *API) Appended() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appended
}

// ---------------------------------------------------------------------------
// Handle resolution (callers hold a.mu)
// ---------------------------------------------------------------------------

func (a *API) check() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.revoked {
		return ErrRevoked
	}
	return nil
}

func (a *API) lookup(id scene.NodeID) (*scene.Node, error) {
	if a.revoked {
		return nil, ErrRevoked
	}
	n, ok := a.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	return n, nil
}

// mutable resolves a handle that may still be edited.
func (a *API) mutable(id scene.NodeID) (*scene.Node, error) {
	n, err := a.lookup(id)
	if err != nil {
		return nil, err
	}
	if a.doc.Contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeAttached, id)
	}
	return n, nil
}

// free resolves a handle that may be given a parent.
func (a *API) free(id scene.NodeID) (*scene.Node, error) {
	n, err := a.mutable(id)
	if err != nil {
		return nil, err
	}
	if p, ok := a.parent[id]; ok {
		return nil, fmt.Errorf("%w: %s is a child of %s", ErrNodeOwned, id, p)
	}
	return n, nil
}
