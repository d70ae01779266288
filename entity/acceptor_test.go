package entity

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/internal/ftpproto"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vpath"
	"github.com/jgaa/wfde/internal/worker"
	"github.com/jgaa/wfde/log/logrus"

	logruslib "github.com/sirupsen/logrus"
)

type fakeDriver struct {
	fs afero.Fs
}

func (d *fakeDriver) Authenticate(user, pass string) (*session.Client, *vpath.Permissions, error) {
	return &session.Client{Username: user}, vpath.NewPermissions(), nil
}

func (d *fakeDriver) Filesystem() afero.Fs { return d.fs }

func (d *fakeDriver) Banner() string { return "test server ready" }

func TestConnHandler_BannerAndNoop(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	pool := worker.NewPool(1)
	defer pool.Stop()

	mgr := session.NewManager(pool)
	logger := logrus.New(logruslib.New())

	iface := &Interface{Node: newNode("eth0", TypeInterface, nil)}

	acc := &Acceptor{
		Iface:      iface,
		Driver:     &fakeDriver{fs: afero.NewMemMapFs()},
		Dispatcher: ftpproto.NewDispatcher(ftpproto.Commands()),
		Manager:    mgr,
		Logger:     logger,
	}

	acc.handleConnection(serverConn)

	reader := bufio.NewReader(clientConn)

	banner, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, banner, "220")
	assert.Contains(t, banner, "test server ready")

	_, err = clientConn.Write([]byte("NOOP\r\n"))
	require.NoError(t, err)

	reply, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, reply, "200")

	_, err = clientConn.Write([]byte("QUIT\r\n"))
	require.NoError(t, err)

	reply, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, reply, "221")

	// The session's control loop should exit and unregister itself shortly
	// after sending the closing reply.
	deadline := time.Now().Add(time.Second)
	for mgr.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, 0, mgr.Count())
}
