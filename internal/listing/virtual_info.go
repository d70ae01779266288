package listing

import (
	"os"
	"time"
)

// virtualInfo implements os.FileInfo for a purely-virtual mount point whose
// physical target does not exist: it reports default-directory stat values
// (spec.md §8) so the entry still renders sensibly in LIST/MLSD.
type virtualInfo struct {
	name    string
	modTime time.Time
}

func newVirtualInfo(name string) *virtualInfo {
	return &virtualInfo{name: name, modTime: time.Unix(0, 0).UTC()}
}

func (v *virtualInfo) Name() string       { return v.name }
func (v *virtualInfo) Size() int64        { return 0 }
func (v *virtualInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (v *virtualInfo) ModTime() time.Time { return v.modTime }
func (v *virtualInfo) IsDir() bool        { return true }
func (v *virtualInfo) Sys() interface{}   { return nil }
