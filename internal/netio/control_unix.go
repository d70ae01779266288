//go:build linux || freebsd || darwin || aix || dragonfly || netbsd || openbsd
// +build linux freebsd darwin aix dragonfly netbsd openbsd

package netio

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// dialerControl sets SO_REUSEADDR and SO_REUSEPORT on the active-mode
// dialer's socket (internal/transfer), so the data connection can bind the
// control connection's local IP; ActiveDialer binds only the IP, and the OS
// picks the port.
func dialerControl(_, _ string, c syscall.RawConn) error {
	var errSetOpts error

	err := c.Control(func(unixFd uintptr) {
		errSetOpts = unix.SetsockoptInt(int(unixFd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if errSetOpts != nil {
			return
		}

		errSetOpts = unix.SetsockoptInt(int(unixFd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return fmt.Errorf("unable to set control options: %w", err)
	}

	if errSetOpts != nil {
		return fmt.Errorf("unable to set control options: %w", errSetOpts)
	}

	return nil
}
