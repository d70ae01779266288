package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jgaa/wfde/internal/vpath"
)

// DefaultIdleTimeout is the default session idle timeout before
// housekeeping closes it (spec.md §4.8).
const DefaultIdleTimeout = 60 * time.Second

// Client is the authenticated identity bound to a session once USER/PASS
// succeeds; nil until then.
type Client struct {
	Username string
	Home     *vpath.Path
}

// SessionData is the hand-back surface a protocol driver uses to ask its
// owning session to perform an action that must run on the session's own
// worker goroutine: start a transfer task, or upgrade a connection to TLS
// (spec.md §3 "Session", §5 "TLS upgrade rule").
type SessionData interface {
	StartTransfer(task func())
	StartTLS(task func())
}

// Session owns the per-connection state enumerated in spec.md §4.1:
// identifier, bound Client, socket, effective Permissions, CWD, owning
// worker index, timestamps, and the protocol state machine.
type Session struct {
	id string

	conn net.Conn

	workerIdx int

	state *FTPState

	mu     sync.RWMutex
	client *Client
	cwd    string
	perms  *vpath.Permissions
	data   SessionData

	loginAt       time.Time
	lastActivity  int64 // unix nanoseconds, atomic
	idleTimeout   time.Duration
	clientID      string
}

// New creates a Session bound to conn, pinned to workerIdx, with an initial
// anonymous effective-permissions set (typically the entity tree's
// not-yet-authenticated scope).
func New(conn net.Conn, workerIdx int, perms *vpath.Permissions) *Session {
	now := time.Now().UTC()

	return &Session{
		id:           uuid.NewString(),
		conn:         conn,
		workerIdx:    workerIdx,
		state:        NewFTPState(),
		cwd:          "/",
		perms:        perms,
		loginAt:      now,
		lastActivity: now.UnixNano(),
		idleTimeout:  DefaultIdleTimeout,
	}
}

// ID returns the session's UUID. Satisfies worker.Housekeeper.
func (s *Session) ID() string { return s.id }

// Conn returns the underlying control connection.
func (s *Session) Conn() net.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.conn
}

// SetConn replaces the control connection, used once by the AUTH TLS
// deferred task to swap the plaintext socket for its tls.Conn wrapper
// (spec.md §5 "TLS upgrade rule").
func (s *Session) SetConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn = conn
}

// WorkerIndex returns the index of the worker this session is pinned to.
func (s *Session) WorkerIndex() int { return s.workerIdx }

// State returns the session's FTP protocol state machine.
func (s *Session) State() *FTPState { return s.state }

// Client returns the authenticated identity, or nil pre-login.
func (s *Session) Client() *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.client
}

// Login binds client to the session and replaces its effective permissions
// with the authenticated scope.
func (s *Session) Login(client *Client, perms *vpath.Permissions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = client
	s.perms = perms
	s.cwd = "/"
}

// Permissions returns the session's current effective Permissions set.
func (s *Session) Permissions() *vpath.Permissions {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.perms
}

// CWD returns the current working directory (a normalized vpath).
func (s *Session) CWD() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cwd
}

// SetCWD updates the current working directory.
func (s *Session) SetCWD(vp string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cwd = vp
}

// SetData installs the SessionData hand-back used by command handlers to
// defer work onto this session's own worker.
func (s *Session) SetData(d SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = d
}

// Data returns the installed SessionData hand-back, or nil if none was set.
func (s *Session) Data() SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data
}

// SetIdleTimeout overrides the default idle timeout used by housekeeping.
func (s *Session) SetIdleTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idleTimeout = d
}

// SetClientID records the CLNT identification string a cooperative client
// sent, for diagnostics only.
func (s *Session) SetClientID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clientID = id
}

// ClientID returns the CLNT string, "" if the client never sent one.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clientID
}

// LoginAt returns when the session was created.
func (s *Session) LoginAt() time.Time { return s.loginAt }

// Touch records activity, resetting the idle clock. Transfer loops call
// this at least every 5 s of wall time (spec.md §4.7) so a long-running
// transfer is never mistaken for an idle session.
func (s *Session) Touch() {
	atomic.StoreInt64(&s.lastActivity, time.Now().UnixNano())
}

// IdleSince returns how long the session has gone without activity.
func (s *Session) IdleSince() time.Duration {
	last := atomic.LoadInt64(&s.lastActivity)

	return time.Since(time.Unix(0, last))
}

// OnHousekeeping reports whether the session is still alive: it returns
// false once IdleSince exceeds the configured idle timeout (spec.md §4.8).
// Satisfies worker.Housekeeper.
func (s *Session) OnHousekeeping() bool {
	s.mu.RLock()
	timeout := s.idleTimeout
	s.mu.RUnlock()

	return s.IdleSince() <= timeout
}

// Close closes the underlying control connection. Idempotent: a second
// call observes the already-closed socket and returns its error untouched.
func (s *Session) Close() error {
	return s.Conn().Close()
}
