package transfer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jgaa/wfde/internal/netio"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vfile"
)

// Reply codes used by the data-channel lifecycle (spec.md §4.5). Kept local
// to this package rather than imported from ftpproto, since ftpproto
// depends on transfer and not the other way around.
const (
	replyOpeningData    = 150
	replyCannotOpenData = 425
	replyTransferBroken = 426
	replyClosingData    = 226
)

// touchInterval is how often the pump loop refreshes the session's idle
// clock while a transfer is in flight (spec.md §4.5 step 6).
const touchInterval = 5 * time.Second

// ErrNoTransferConnection is returned when a transfer task runs without a
// PORT/PASV endpoint armed; the command dispatcher's need_post_or_pasv gate
// normally prevents this from being reached.
var ErrNoTransferConnection = errors.New("transfer: no PORT or PASV endpoint armed")

const defaultPumpBuffer = 32 * 1024

// Params describes one data-channel transfer task, normally run via
// SessionData.StartTransfer (spec.md §4.5). Data is whatever the caller
// wants pumped to/from the data socket: a file (wrapped with NewFileData
// for the ASCII-translation decision) for STOR/RETR/APPE, or a directory
// listing for LIST/NLST/MLSD.
type Params struct {
	Sess      *session.Session
	State     *session.FTPState
	Reply     *netio.ReplyWriter
	Direction session.Direction
	Data      io.ReadWriteCloser
	Vpath     string

	// LocalAddr is the control connection's local address, reused as the
	// active-mode dial source (spec.md §4.6).
	LocalAddr net.Addr

	// TLSConfig is non-nil when PROT P has armed encrypted transfers
	// (spec.md §4.5 step 5); nil means the data socket stays plaintext.
	TLSConfig   *tls.Config
	DialTimeout time.Duration

	// OpeningMessage overrides the 150 reply's text, e.g. STOU's "FILE: name"
	// convention. Empty means the generic "Opening data connection".
	OpeningMessage string
}

// NewFileData wraps f for the pump loop, applying ASCII line-ending
// translation when typ is session.TypeASCII (spec.md §4.5 step 1).
func NewFileData(f *vfile.File, typ session.TransferType) io.ReadWriteCloser {
	if typ == session.TypeASCII {
		return vfile.NewASCIIFile(f)
	}

	return vfile.NewStream(f)
}

// Run executes the eight-step data-channel transfer task described in
// spec.md §4.5: opens the data connection, optionally upgrades it to TLS,
// pumps bytes between Data and the socket in the direction requested, and
// replies throughout. It always resets the FTP state's transfer fields and
// closes Data before returning.
func Run(p Params) {
	defer p.State.ResetAfterTransfer()
	defer p.Data.Close()

	msg := p.OpeningMessage
	if msg == "" {
		msg = "Opening data connection"
	}

	if err := p.Reply.WriteReply(replyOpeningData, msg); err != nil {
		return
	}

	conn, err := p.dial()
	if err != nil {
		p.failAbortAware(replyCannotOpenData, fmt.Sprintf("Could not open data connection: %v", err))

		return
	}

	p.State.SetAbortCallback(func() { _ = conn.Close() })
	defer p.State.SetAbortCallback(nil)

	if p.TLSConfig != nil {
		tlsConn := tls.Server(conn, p.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			p.failAbortAware(replyCannotOpenData, fmt.Sprintf("TLS handshake failed: %v", err))

			return
		}

		conn = tlsConn
	}

	var copyErr error
	if p.Direction == session.TransferIncoming {
		copyErr = p.receiveLoop(conn, p.Data)
	} else {
		copyErr = p.sendLoop(conn, p.Data)
	}

	if tlsConn, ok := conn.(*tls.Conn); ok {
		_ = tlsConn.CloseWrite() // best-effort; failure is logged upstream, not fatal
	}

	_ = conn.Close()

	if copyErr != nil {
		p.failAbortAware(replyTransferBroken, fmt.Sprintf("Transfer aborted: %v", copyErr))

		return
	}

	_ = p.Reply.WriteReply(replyClosingData,
		fmt.Sprintf("Closing data connection, file transferred successfully: %s", p.Vpath))
}

// dial opens the data connection per the armed initiation mode (steps 3/4).
func (p Params) dial() (net.Conn, error) {
	acceptor, addr := p.State.DataEndpoint()

	switch p.State.Initiation() {
	case session.InitiationPort:
		raddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, err
		}

		return DialActive(context.Background(), p.LocalAddr, raddr, p.DialTimeout, nil)
	case session.InitiationPasv:
		if acceptor == nil {
			return nil, ErrNoTransferConnection
		}

		return acceptor.Accept()
	default:
		return nil, ErrNoTransferConnection
	}
}

// failAbortAware implements the two-reply sequence from spec.md §4.5: a
// failure always gets its own reply, and if the failure was caused by an
// in-flight ABOR, a second "command successful" reply follows so the
// client sees both.
func (p Params) failAbortAware(code int, msg string) {
	_ = p.Reply.WriteReply(code, msg)

	if p.State.AbortPending() {
		_ = p.Reply.WriteReply(replyClosingData, "ABOR command successful")
	}
}

// sendLoop moves bytes from rw to conn (RETR/LIST-style transfers).
func (p Params) sendLoop(conn net.Conn, rw io.Reader) error {
	buf := make([]byte, defaultPumpBuffer)
	lastTouch := time.Now()

	for {
		n, readErr := rw.Read(buf)
		if n > 0 {
			if _, err := conn.Write(buf[:n]); err != nil {
				return err
			}
		}

		if time.Since(lastTouch) >= touchInterval {
			p.Sess.Touch()
			lastTouch = time.Now()
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}

			return readErr
		}
	}
}

// receiveLoop moves bytes from conn to rw (STOR/APPE-style transfers).
func (p Params) receiveLoop(conn net.Conn, rw io.Writer) error {
	buf := make([]byte, defaultPumpBuffer)
	lastTouch := time.Now()

	for {
		n, readErr := conn.Read(buf)
		if n > 0 {
			if _, err := rw.Write(buf[:n]); err != nil {
				return err
			}
		}

		if time.Since(lastTouch) >= touchInterval {
			p.Sess.Touch()
			lastTouch = time.Now()
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}

			return readErr
		}
	}
}
