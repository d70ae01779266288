package transfer

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/internal/netio"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vfile"
	"github.com/jgaa/wfde/internal/vpath"
)

// selfSignedTLSConfig builds a throwaway server-side TLS config for the
// PASV+PROT P test below.
func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}

	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

func pairedSession(t *testing.T) *session.Session {
	t.Helper()

	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

	return session.New(a, 0, vpath.NewPermissions())
}

func TestRunOutgoingSendsFileOverPASV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	f, err := vfile.Open(path, vfile.OpRead)
	require.NoError(t, err)

	acceptor, err := Listen(net.ParseIP("127.0.0.1"), nil, nil)
	require.NoError(t, err)

	sess := pairedSession(t)
	sess.State().SetType(session.TypeBinary)
	sess.State().SetPassive(acceptor)

	var out bytes.Buffer
	reply := netio.NewReplyWriter(&out)

	clientDone := make(chan []byte, 1)
	go func() {
		conn, dialErr := net.Dial("tcp", acceptor.Addr().String())
		if dialErr != nil {
			clientDone <- nil

			return
		}
		defer conn.Close()

		got, _ := io.ReadAll(conn)
		clientDone <- got
	}()

	Run(Params{
		Sess:      sess,
		State:     sess.State(),
		Reply:     reply,
		Direction: session.TransferOutgoing,
		Data:      NewFileData(f, session.TypeBinary),
		Vpath:     "/out.bin",
	})

	got := <-clientDone
	require.NotNil(t, got)
	assert.Equal(t, "hello world", string(got))
	assert.True(t, strings.Contains(out.String(), "150 "))
	assert.True(t, strings.Contains(out.String(), "226 "))
	assert.Equal(t, session.InitiationNone, sess.State().Initiation())
}

func TestRunIncomingReceivesFileOverPASV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")

	f, err := vfile.Open(path, vfile.OpWriteNew)
	require.NoError(t, err)

	acceptor, err := Listen(net.ParseIP("127.0.0.1"), nil, nil)
	require.NoError(t, err)

	sess := pairedSession(t)
	sess.State().SetType(session.TypeBinary)
	sess.State().SetPassive(acceptor)

	var out bytes.Buffer
	reply := netio.NewReplyWriter(&out)

	go func() {
		conn, dialErr := net.Dial("tcp", acceptor.Addr().String())
		if dialErr != nil {
			return
		}
		defer conn.Close()

		_, _ = conn.Write([]byte("uploaded payload"))
	}()

	Run(Params{
		Sess:      sess,
		State:     sess.State(),
		Reply:     reply,
		Direction: session.TransferIncoming,
		Data:      NewFileData(f, session.TypeBinary),
		Vpath:     "/in.bin",
	})

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "uploaded payload", string(got))
	assert.True(t, strings.Contains(out.String(), "226 "))
}

func TestRunOutgoingOverPASVWithPROTPUpgradesExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secure.bin")
	require.NoError(t, os.WriteFile(path, []byte("top secret"), 0o644))

	f, err := vfile.Open(path, vfile.OpRead)
	require.NoError(t, err)

	serverTLS := selfSignedTLSConfig(t)

	// handlePASV never feeds a TLS config into Listen: the listener stays
	// plaintext and Run below performs the sole TLS upgrade on accept.
	acceptor, err := Listen(net.ParseIP("127.0.0.1"), nil, nil)
	require.NoError(t, err)

	sess := pairedSession(t)
	sess.State().SetType(session.TypeBinary)
	sess.State().SetPassive(acceptor)

	var out bytes.Buffer
	reply := netio.NewReplyWriter(&out)

	clientDone := make(chan []byte, 1)
	go func() {
		rawConn, dialErr := net.Dial("tcp", acceptor.Addr().String())
		if dialErr != nil {
			clientDone <- nil

			return
		}
		defer rawConn.Close()

		// Exactly one TLS handshake: a second tls.Client wrap on top of
		// this one would hang waiting for a TLS record it never gets.
		clientConn := tls.Client(rawConn, &tls.Config{InsecureSkipVerify: true}) // nolint:gosec
		defer clientConn.Close()

		got, _ := io.ReadAll(clientConn)
		clientDone <- got
	}()

	Run(Params{
		Sess:      sess,
		State:     sess.State(),
		Reply:     reply,
		Direction: session.TransferOutgoing,
		Data:      NewFileData(f, session.TypeBinary),
		Vpath:     "/secure.bin",
		TLSConfig: serverTLS,
	})

	got := <-clientDone
	require.NotNil(t, got)
	assert.Equal(t, "top secret", string(got))
	assert.Contains(t, out.String(), "226 ")
}

func TestRunWithoutArmedEndpointReportsCannotOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f, err := vfile.Open(path, vfile.OpRead)
	require.NoError(t, err)

	sess := pairedSession(t)

	var out bytes.Buffer
	reply := netio.NewReplyWriter(&out)

	Run(Params{
		Sess:      sess,
		State:     sess.State(),
		Reply:     reply,
		Direction: session.TransferOutgoing,
		Data:      NewFileData(f, session.TypeBinary),
		Vpath:     "/x.bin",
	})

	assert.True(t, strings.HasPrefix(out.String(), "150 "))
	assert.Contains(t, out.String(), "425 ")
}

func TestFailAbortAwareSendsSecondReplyWhenAbortPending(t *testing.T) {
	var out bytes.Buffer
	reply := netio.NewReplyWriter(&out)

	state := session.NewFTPState()
	state.SetAbortPending(true)

	p := Params{State: state, Reply: reply}
	p.failAbortAware(replyTransferBroken, "broken")

	assert.Contains(t, out.String(), "426 broken")
	assert.Contains(t, out.String(), "226 ABOR command successful")
}
