// Package netio wraps control and data sockets behind a small interface
// that supports an in-place TLS upgrade, plus the platform socket-reuse
// knobs the active-mode dialer needs (spec.md §4, component F).
package netio

import (
	"crypto/tls"
	"net"
	"time"
)

// Conn wraps one control or data connection. It is never touched by more
// than one goroutine at a time: every session (and its data connections)
// is pinned to a single worker for its whole lifetime (spec.md §5
// "Scheduling model"), so UpgradeTLS swapping the underlying net.Conn
// needs no locking.
type Conn struct {
	raw       net.Conn
	encrypted bool
}

// Wrap adapts an already-accepted/dialed net.Conn.
func Wrap(c net.Conn) *Conn {
	return &Conn{raw: c}
}

// Raw returns the current underlying connection (plain or TLS).
func (c *Conn) Raw() net.Conn { return c.raw }

// Encrypted reports whether UpgradeTLS has completed on this connection.
func (c *Conn) Encrypted() bool { return c.encrypted }

// Read implements io.Reader over the current underlying connection.
func (c *Conn) Read(p []byte) (int, error) { return c.raw.Read(p) }

// Write implements io.Writer over the current underlying connection.
func (c *Conn) Write(p []byte) (int, error) { return c.raw.Write(p) }

// Close shuts down the connection. Closing interrupts any goroutine
// blocked in Read/Write with a cancellation-shaped error (spec.md §5
// "Cancellation / timeouts").
func (c *Conn) Close() error { return c.raw.Close() }

// SetDeadline forwards to the underlying connection.
func (c *Conn) SetDeadline(t time.Time) error { return c.raw.SetDeadline(t) }

// RemoteAddr forwards to the underlying connection.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// LocalAddr forwards to the underlying connection.
func (c *Conn) LocalAddr() net.Addr { return c.raw.LocalAddr() }

// UpgradeTLS performs a server-side TLS handshake over the current
// connection and, on success, swaps it in as the live connection. Must
// only be invoked as a deferred post-reply task on the session's own
// worker (spec.md §5 "TLS upgrade rule"): the reply announcing the
// upgrade has to reach the client before the handshake begins.
func (c *Conn) UpgradeTLS(cfg *tls.Config) error {
	tlsConn := tls.Server(c.raw, cfg)

	if err := tlsConn.Handshake(); err != nil {
		return err
	}

	c.raw = tlsConn
	c.encrypted = true

	return nil
}
