package ftpproto

import (
	"path/filepath"

	"github.com/jgaa/wfde/internal/vpath"
)

// Resolved is the outcome of mapping a client-supplied path argument to a
// governing mount and a physical path.
type Resolved struct {
	Vpath string
	Ppath string
	Mount *vpath.Path
}

// Resolve normalizes arg against the session's CWD, finds the governing
// mount in perms, and joins the mount's physical root with whatever suffix
// remains below it (spec.md §3 "Path & Permissions").
func Resolve(perms *vpath.Permissions, cwd, arg string) (Resolved, error) {
	norm, err := vpath.Normalize(arg, cwd)
	if err != nil {
		return Resolved{}, err
	}

	mount, suffix, err := perms.GetPath(norm)
	if err != nil {
		return Resolved{}, err
	}

	ppath := mount.PhysicalPath()
	if suffix != "" {
		ppath = filepath.Join(ppath, suffix)
	}

	return Resolved{Vpath: norm, Ppath: ppath, Mount: mount}, nil
}
