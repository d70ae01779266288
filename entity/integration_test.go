package entity_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/secsy/goftp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/entity"
	"github.com/jgaa/wfde/internal/ftpproto"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vpath"
	"github.com/jgaa/wfde/internal/worker"
	logadapter "github.com/jgaa/wfde/log/logrus"
)

// goftpDriver is a minimal ftpproto.Driver over an afero.MemMapFs, enough to
// drive a real goftp client end to end - grounded on the teacher's own
// testing pattern (client_handler_test.go): speak the wire protocol from
// the outside with a second, independent client implementation rather than
// calling handlers directly.
type goftpDriver struct {
	fs       afero.Fs
	perms    *vpath.Permissions
	accounts map[string]string
}

func (d *goftpDriver) Authenticate(user, pass string) (*session.Client, *vpath.Permissions, error) {
	want, ok := d.accounts[user]
	if !ok || want != pass {
		return nil, nil, goftpAuthError{}
	}

	return &session.Client{Username: user}, d.perms, nil
}

func (d *goftpDriver) Filesystem() afero.Fs { return d.fs }
func (d *goftpDriver) Banner() string       { return "wfde integration test ready" }

type goftpAuthError struct{}

func (goftpAuthError) Error() string { return "invalid credentials" }

func TestServerRoundTrip_GoftpClient(t *testing.T) {
	srv := entity.NewServer("itest")
	host, err := srv.AddHost("default")
	require.NoError(t, err)

	bits, err := vpath.ParsePermBits("CAN_READ,CAN_WRITE,CAN_LIST,CAN_ENTER,CAN_DELETE_FILE,CAN_DELETE_DIR,CAN_RENAME,IS_RECURSIVE")
	require.NoError(t, err)

	perms := vpath.NewPermissions()
	require.NoError(t, perms.AddPath(vpath.New("/", "/", bits, vpath.TypeDirectory)))
	host.SetPermissions(perms)

	proto, err := host.AddProtocol("ftp")
	require.NoError(t, err)

	iface, err := proto.AddInterface("eth0", "127.0.0.1:0")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	driver := &goftpDriver{
		fs:       fs,
		perms:    host.EffectivePermissions(),
		accounts: map[string]string{"alice": "secret"},
	}

	logger := logadapter.New(logrus.StandardLogger())

	acc := &entity.Acceptor{
		Iface:         iface,
		Driver:        driver,
		Dispatcher:    ftpproto.NewDispatcher(ftpproto.Commands()),
		Manager:       session.NewManager(worker.NewPool(2)),
		Logger:        logger,
		PasvPortRange: nil,
	}

	require.NoError(t, acc.Listen())

	defer acc.Close()

	go func() { _ = acc.Serve() }()

	addr := acc.Addr().String()

	conf := goftp.Config{
		User:     "alice",
		Password: "secret",
		Timeout:  5 * time.Second,
	}

	client, err := goftp.DialConfig(conf, addr)
	require.NoError(t, err)

	defer client.Close()

	payload := []byte("round trip payload\n")
	require.NoError(t, client.Store("greeting.txt", bytes.NewReader(payload)))

	var buf bytes.Buffer
	require.NoError(t, client.Retrieve("greeting.txt", &buf))
	require.Equal(t, payload, buf.Bytes())

	entries, err := client.ReadDir("/")
	require.NoError(t, err)

	found := false

	for _, e := range entries {
		if e.Name() == "greeting.txt" {
			found = true
		}
	}

	require.True(t, found, "uploaded file should appear in LIST output")
}
