package vpath

import "errors"

// ErrAlreadyExists is returned by AddPath when a mount's vpath or ppath is
// already registered in the set.
var ErrAlreadyExists = errors.New("vpath: mount already exists")

// Permissions is an ordered container of Path mounts, indexed by both
// virtual and physical path (each unique within the set). It supports
// longest-prefix lookup and scope merging (spec.md §3, §4.1).
//
// A Permissions value is not safe for concurrent mutation, but once built it
// is treated as immutable and freely shared across goroutines/workers
// (spec.md §5, "Shared-resource policy").
type Permissions struct {
	byVpath map[string]*Path
	order   []*Path
}

// NewPermissions returns an empty Permissions set.
func NewPermissions() *Permissions {
	return &Permissions{byVpath: make(map[string]*Path)}
}

// AddPath registers a mount. It fails if the vpath or the ppath is already
// present in the set.
func (p *Permissions) AddPath(path *Path) error {
	if _, exists := p.byVpath[path.VirtualPath()]; exists {
		return ErrAlreadyExists
	}

	for _, existing := range p.order {
		if existing.PhysicalPath() == path.PhysicalPath() {
			return ErrAlreadyExists
		}
	}

	p.byVpath[path.VirtualPath()] = path
	p.order = append(p.order, path)

	return nil
}

// Paths returns all mounts, in registration order.
func (p *Permissions) Paths() []*Path {
	out := make([]*Path, len(p.order))
	copy(out, p.order)

	return out
}

// Copy returns a deep copy of the set: every mount is itself copied.
func (p *Permissions) Copy() *Permissions {
	cp := NewPermissions()

	for _, path := range p.order {
		_ = cp.AddPath(path.Copy())
	}

	return cp
}

// GetPath resolves a normalized query vpath to the mount that governs it,
// along with whatever suffix remains below that mount's vpath.
//
// Resolution order: an exact vpath match always wins. Otherwise the longest
// IS_RECURSIVE mount whose vpath is a proper prefix of the query (on a "/"
// boundary) is used. If nothing matches, ErrAccessDenied is returned.
func (p *Permissions) GetPath(query string) (*Path, string, error) {
	if exact, ok := p.byVpath[query]; ok {
		return exact, "", nil
	}

	var (
		best      *Path
		bestDepth = -1
	)

	for _, path := range p.order {
		mv := path.VirtualPath()

		if !path.Can(IsRecursive) {
			continue
		}

		if !isProperPrefix(mv, query) {
			continue
		}

		if len(mv) > bestDepth {
			bestDepth = len(mv)
			best = path
		}
	}

	if best == nil {
		return nil, "", errAccessDenied(query)
	}

	remaining := query[len(best.VirtualPath()):]
	for len(remaining) > 0 && remaining[0] == '/' {
		remaining = remaining[1:]
	}

	return best, remaining, nil
}

// isProperPrefix reports whether mount is a proper prefix of query on a "/"
// boundary: mount == "/" (matches everything), or query starts with
// mount+"/".
func isProperPrefix(mount, query string) bool {
	if mount == "/" {
		return len(query) > 1
	}

	if len(query) <= len(mount) {
		return false
	}

	if query[:len(mount)] != mount {
		return false
	}

	return query[len(mount)] == '/'
}

// Merge absorbs every mount from other that this set does not already have
// (by either vpath or ppath); the receiver's own entries always dominate on
// conflict. Mirrors original_source/src/wfde/WfdePermissions.cpp Merge.
func (p *Permissions) Merge(other *Permissions) {
	for _, path := range other.order {
		if _, exists := p.byVpath[path.VirtualPath()]; exists {
			continue
		}

		conflict := false

		for _, existing := range p.order {
			if existing.PhysicalPath() == path.PhysicalPath() {
				conflict = true

				break
			}
		}

		if conflict {
			continue
		}

		_ = p.AddPath(path.Copy())
	}
}
