package transfer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jgaa/wfde/internal/netio"
)

// ErrPortFormat is returned when a PORT argument isn't six comma-separated
// octets (spec.md §4.6).
var ErrPortFormat = errors.New("transfer: malformed PORT address")

var portArgRe = regexp.MustCompile(`^([0-9]{1,3},){5}[0-9]{1,3}$`)

// ParsePortArg parses a RFC 959 PORT argument ("h1,h2,h3,h4,p1,p2") into a
// dial target.
func ParsePortArg(param string) (*net.TCPAddr, error) {
	if !portArgRe.MatchString(param) {
		return nil, fmt.Errorf("%w: %q", ErrPortFormat, param)
	}

	parts := strings.Split(param, ",")
	ip := strings.Join(parts[0:4], ".")

	p1, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, err
	}

	p2, err := strconv.Atoi(parts[5])
	if err != nil {
		return nil, err
	}

	return net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", ip, p1<<8+p2))
}

// DialActive opens the client-advertised data connection for active mode
// (spec.md §4.5 step 3), reusing the control connection's local address,
// and upgrades it to TLS when tlsConfig is non-nil (encrypted transfers).
func DialActive(ctx context.Context, localAddr net.Addr, raddr *net.TCPAddr, timeout time.Duration, tlsConfig *tls.Config) (net.Conn, error) {
	dctx := ctx

	var cancel context.CancelFunc

	if timeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := (netio.ActiveDialer{LocalAddr: localAddr}).Dial(dctx, raddr.String())
	if err != nil {
		return nil, fmt.Errorf("could not establish active connection: %w", err)
	}

	if tlsConfig != nil {
		tlsConn := tls.Server(conn, tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("active connection TLS handshake: %w", err)
		}

		return tlsConn, nil
	}

	return conn, nil
}
