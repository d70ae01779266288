// Package entity implements the Server -> Host -> Protocol -> Interface
// tree (spec.md §3 "Entity tree", §4.9): each node carries a name, an
// optional local vpath.Permissions scope, a parent pointer, and its
// effective permissions are its own scope merged bottom-up with every
// ancestor's, per spec.md §4.9 (grounded on
// original_source/src/wfde/WfdeEntity.h).
package entity

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jgaa/wfde/internal/vpath"
)

// Type identifies the kind of node in the entity tree.
type Type int

// Node kinds, in tree order.
const (
	TypeServer Type = iota
	TypeHost
	TypeProtocol
	TypeInterface
)

func (t Type) String() string {
	switch t {
	case TypeServer:
		return "Server"
	case TypeHost:
		return "Host"
	case TypeProtocol:
		return "Protocol"
	case TypeInterface:
		return "Interface"
	default:
		return "Unknown"
	}
}

// Parent is the narrow surface a node needs from its owner: its own
// effective permissions and whether it has a parent itself, so that the
// rollup in EffectivePermissions can recurse without importing a concrete
// type.
type Parent interface {
	EffectivePermissions() *vpath.Permissions
	HasParent() bool
}

// Node is the common base embedded by Server/Host/Protocol/Interface. It is
// not used standalone.
type Node struct {
	id       uuid.UUID
	name     string
	nodeType Type
	parent   Parent

	mu    sync.RWMutex
	perms *vpath.Permissions
}

// newNode constructs the common fields; parent is nil for the root Server.
func newNode(name string, t Type, parent Parent) Node {
	return Node{id: uuid.New(), name: name, nodeType: t, parent: parent}
}

// ID returns the node's stable identifier.
func (n *Node) ID() uuid.UUID { return n.id }

// Name returns the node's configured name.
func (n *Node) Name() string { return n.name }

// Type returns the node's position in the tree.
func (n *Node) Type() Type { return n.nodeType }

// HasParent reports whether this node has an owner (false only for the root
// Server).
func (n *Node) HasParent() bool { return n.parent != nil }

// SetPermissions installs this node's own permission scope, overriding
// anything inherited from ancestors for any mount it defines.
func (n *Node) SetPermissions(p *vpath.Permissions) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.perms = p
}

// Permissions returns this node's own scope, nil if none was set.
func (n *Node) Permissions() *vpath.Permissions {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.perms
}

// EffectivePermissions returns this node's own Permissions copied and then
// merged with every ancestor's local Permissions, visited bottom-up
// (spec.md §4.9): the node's own mounts always win a conflict, and each
// successive ancestor only fills in what is still missing.
func (n *Node) EffectivePermissions() *vpath.Permissions {
	own := n.Permissions()

	var rval *vpath.Permissions
	if own != nil {
		rval = own.Copy()
	} else {
		rval = vpath.NewPermissions()
	}

	if n.parent != nil {
		rval.Merge(n.parent.EffectivePermissions())
	}

	return rval
}

var _ Parent = (*Node)(nil)

// ErrDuplicateChild is returned when a name already names a child of the
// same parent.
type ErrDuplicateChild struct {
	Parent string
	Name   string
}

func (e *ErrDuplicateChild) Error() string {
	return fmt.Sprintf("entity: %q already has a child named %q", e.Parent, e.Name)
}
