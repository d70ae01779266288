// Package listing implements the directory-listing engine: an iterator over
// a physical directory plus injected virtual mounts, driving pluggable
// LIST/NLST/MLSD formatters (spec.md §4.3).
package listing

import (
	"os"
	"sort"

	"github.com/spf13/afero"

	"github.com/jgaa/wfde/internal/vpath"
)

// Entry is one (name, stat) pair yielded by an Iterator. IsVirtual marks an
// entry synthesized from a mount point whose physical target is missing.
type Entry struct {
	Name      string
	Info      os.FileInfo
	IsVirtual bool
	VirtMount *vpath.Path // set only when IsVirtual
}

// Iterator walks one physical directory (via afero.Fs) and, once exhausted,
// yields entries for any virtual mount configured directly under dirVpath
// whose physical counterpart does not exist.
type Iterator struct {
	fs       afero.Fs
	dirPpath string
	dirVpath string
	perms    *vpath.Permissions

	entries []Entry
	pos     int
}

// NewIterator prepares an iterator over dirPpath (the physical directory)
// exposed at dirVpath, injecting any virtual mounts from perms that live
// directly under dirVpath and have no physical counterpart.
func NewIterator(fs afero.Fs, dirPpath, dirVpath string, perms *vpath.Permissions) (*Iterator, error) {
	it := &Iterator{fs: fs, dirPpath: dirPpath, dirVpath: dirVpath, perms: perms}

	if err := it.load(); err != nil {
		return nil, err
	}

	return it, nil
}

func (it *Iterator) load() error {
	infos, err := afero.ReadDir(it.fs, it.dirPpath)
	if err != nil {
		return err
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	it.entries = make([]Entry, 0, len(infos)+4)
	for _, info := range infos {
		it.entries = append(it.entries, Entry{Name: info.Name(), Info: info})
	}

	it.entries = append(it.entries, it.virtualMounts()...)

	return nil
}

// virtualMounts returns an Entry for every mount registered directly under
// dirVpath whose physical target does not exist on disk, so mount points
// stay visible in listings even when they overlay missing directories.
func (it *Iterator) virtualMounts() []Entry {
	var extra []Entry

	for _, m := range it.perms.Paths() {
		parent, name := splitParent(m.VirtualPath())
		if parent != it.dirVpath || name == "" {
			continue
		}

		if _, err := it.fs.Stat(m.PhysicalPath()); err == nil {
			continue // has a physical counterpart; the directory walk already covers it
		}

		extra = append(extra, Entry{
			Name:      name,
			Info:      newVirtualInfo(name),
			IsVirtual: true,
			VirtMount: m,
		})
	}

	return extra
}

func splitParent(vp string) (parent, name string) {
	idx := -1

	for i := len(vp) - 1; i >= 0; i-- {
		if vp[i] == '/' {
			idx = i

			break
		}
	}

	if idx < 0 {
		return "", vp
	}

	if idx == 0 {
		return "/", vp[1:]
	}

	return vp[:idx], vp[idx+1:]
}

// Next returns the next entry and advances the cursor, or ok=false once
// exhausted.
func (it *Iterator) Next() (Entry, bool) {
	if it.pos >= len(it.entries) {
		return Entry{}, false
	}

	e := it.entries[it.pos]
	it.pos++

	return e, true
}

// Reset rewinds the iterator to the entry at index pos, used by the
// chunked-batch driver to resume from exactly where the last buffer left
// off (spec.md §4.3).
func (it *Iterator) Reset(pos int) { it.pos = pos }

// Pos returns the current cursor index.
func (it *Iterator) Pos() int { return it.pos }
