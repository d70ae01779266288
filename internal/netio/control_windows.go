package netio

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// dialerControl sets SO_REUSEADDR on the active-mode dialer's socket, so the
// data connection can bind the control connection's local IP; ActiveDialer
// binds only the IP, and the OS picks the port.
func dialerControl(_, _ string, c syscall.RawConn) error {
	var errSetOpts error

	err := c.Control(func(fd uintptr) {
		errSetOpts = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}

	return errSetOpts
}
