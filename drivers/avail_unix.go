//go:build linux || freebsd || darwin || aix || dragonfly || netbsd || openbsd

package drivers

import "golang.org/x/sys/unix"

// AvailableSpace backs AVBL (internal/ftpproto.AvailableSpaceExtension),
// grounded on control_unix.go's use of golang.org/x/sys/unix for OS-level
// socket options: here it's statfs instead of a socket, but the same
// dependency covers both.
func (d *AferoDriver) AvailableSpace(ppath string) (int64, error) {
	var stat unix.Statfs_t

	if err := unix.Statfs(ppath, &stat); err != nil {
		return 0, err
	}

	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
