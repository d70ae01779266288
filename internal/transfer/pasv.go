// Package transfer implements the data-channel transfer subsystem (spec.md
// §4.5, §4.6, component J): active/passive connection setup, the optional
// TLS upgrade on the data socket, and the send/receive pump loops that move
// bytes between a vfile.File and the data connection.
package transfer

import (
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"

	"github.com/jgaa/wfde/internal/session"
)

// ErrNoListeningPort is returned when no port in the configured passive
// range could be bound.
var ErrNoListeningPort = errors.New("transfer: could not find a free port to listen on")

// PortRange bounds the ports PASV may bind to; a zero-value range means
// "let the OS pick" (spec.md §4.6 uses port 0 by default).
type PortRange struct {
	Start, End int
}

// PasvAcceptor implements session.PasvAcceptor: a listening socket bound by
// a PASV command and held in the FTP state until the transfer completes or
// is reset (spec.md §4.6). Each PASV command binds a new one; an earlier
// acceptor is not reused.
type PasvAcceptor struct {
	listener net.Listener
	addr     *net.TCPAddr
}

var _ session.PasvAcceptor = (*PasvAcceptor)(nil)

// Listen binds a passive listener on localIP, optionally within portRange,
// optionally wrapped in TLS for implicit-encryption deployments.
func Listen(localIP net.IP, portRange *PortRange, tlsConfig *tls.Config) (*PasvAcceptor, error) {
	tcpListener, err := listenTCP(localIP, portRange)
	if err != nil {
		return nil, err
	}

	var listener net.Listener = tcpListener
	if tlsConfig != nil {
		listener = tls.NewListener(tcpListener, tlsConfig)
	}

	addr, _ := tcpListener.Addr().(*net.TCPAddr)

	return &PasvAcceptor{listener: listener, addr: addr}, nil
}

func listenTCP(localIP net.IP, portRange *PortRange) (*net.TCPListener, error) {
	if portRange == nil {
		return net.ListenTCP("tcp", &net.TCPAddr{IP: localIP, Port: 0})
	}

	attempts := portRange.End - portRange.Start
	if attempts < 10 {
		attempts = 10
	} else if attempts > 1000 {
		attempts = 1000
	}

	for i := 0; i < attempts; i++ {
		port := portRange.Start + rand.Intn(portRange.End-portRange.Start+1) // nolint:gosec

		l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: localIP, Port: port})
		if err == nil {
			return l, nil
		}
	}

	return nil, ErrNoListeningPort
}

// Accept blocks for the client's data connection.
func (p *PasvAcceptor) Accept() (net.Conn, error) { return p.listener.Accept() }

// Addr returns the bound local endpoint.
func (p *PasvAcceptor) Addr() net.Addr { return p.addr }

// Close releases the listening socket.
func (p *PasvAcceptor) Close() error { return p.listener.Close() }

// EncodePASVReply renders the acceptor's endpoint as the RFC 959 h1,h2,h3,h4,p1,p2
// octet form used in the 227 reply.
func EncodePASVReply(publicIP net.IP, a *PasvAcceptor) string {
	ip := publicIP
	if ip == nil {
		ip = a.addr.IP
	}

	ip4 := ip.To4()
	port := a.addr.Port

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip4[0], ip4[1], ip4[2], ip4[3], port>>8, port&0xff)
}
