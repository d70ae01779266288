//go:build linux || freebsd || darwin || aix || dragonfly || netbsd || openbsd

package listing

import (
	"os"
	"syscall"
)

// deviceInode extracts the (device, inode) pair backing info, when the
// underlying afero.Fs surfaced a real *syscall.Stat_t (the OS-backed
// filesystem; afero's in-memory filesystems used in tests do not).
func deviceInode(info os.FileInfo) (dev, ino uint64, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}

	return uint64(st.Dev), uint64(st.Ino), true
}
