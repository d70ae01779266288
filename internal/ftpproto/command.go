package ftpproto

import (
	"crypto/tls"
	"net"
	"regexp"
	"time"

	"github.com/spf13/afero"

	"github.com/jgaa/wfde/internal/netio"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/transfer"
	"github.com/jgaa/wfde/internal/vpath"
	"github.com/jgaa/wfde/log"
)

// Driver is the backing-store surface the protocol layer needs: user
// authentication and the filesystem mounts are resolved against.
type Driver interface {
	// Authenticate verifies username/password and returns the
	// authenticated identity plus its effective Permissions, already
	// rolled up from the entity tree (spec.md §4.1 "Entity tree").
	Authenticate(username, password string) (*session.Client, *vpath.Permissions, error)
	// Filesystem returns the afero.Fs every mount's physical path is
	// resolved against.
	Filesystem() afero.Fs
	// Banner is sent as the 220 greeting on connect.
	Banner() string
}

// Context is what every command handler receives: the session, its
// protocol state, the backing driver, and a logger scoped to this
// connection. Transfer-shaped commands (STOR/RETR/APPE/LIST/NLST/MLSD) also
// use Reply/LocalAddr/TLSConfig/DialTimeout to build a transfer.Params and
// hand it off via Sess.Data().StartTransfer.
type Context struct {
	Sess   *session.Session
	State  *session.FTPState
	Driver Driver
	Logger log.Logger

	Reply       *netio.ReplyWriter
	LocalAddr   net.Addr
	TLSConfig   *tls.Config
	DialTimeout time.Duration

	// PublicIP overrides the address PASV reports to the client, for
	// deployments behind NAT; nil means report the listening socket's own
	// address.
	PublicIP net.IP
	// PasvPortRange bounds the ports PASV may bind; nil lets the OS pick.
	PasvPortRange *transfer.PortRange
}

// Gates are the pre-dispatch checks spec.md §4.4 runs, in order, before a
// handler is invoked.
type Gates struct {
	NeedPrevCmd         string
	MustBeLoggedIn      bool
	MustNotBeLoggedIn   bool
	MustBeInTransfer    bool
	MustNotBeInTransfer bool
	NeedPostOrPasv      bool
	MustHaveEncryption  bool
	ParamRegex          *regexp.Regexp
}

// HandlerFunc implements one command. param is the raw remainder of the
// line; groups is the ParamRegex submatch (nil if no regex was set).
type HandlerFunc func(ctx *Context, param string, groups []string) Reply

// Command is one dispatchable FTP verb.
type Command struct {
	Name    string
	Gates   Gates
	Handler HandlerFunc
}
