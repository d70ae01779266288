package netio

import (
	"context"
	"net"
)

// ActiveDialer dials the client-advertised PORT/EPRT endpoint for active
// mode data transfers, reusing the control connection's local address so
// the data connection originates from the same interface (spec.md §4.6).
type ActiveDialer struct {
	// LocalAddr is the control connection's local address; its IP is
	// reused as the data socket's source address.
	LocalAddr net.Addr
}

// Dial opens the data connection to addr.
func (d ActiveDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Control: dialerControl}

	if tcpAddr, ok := d.LocalAddr.(*net.TCPAddr); ok {
		dialer.LocalAddr = &net.TCPAddr{IP: tcpAddr.IP}
	}

	return dialer.DialContext(ctx, "tcp", addr)
}
