package entity

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jgaa/wfde/internal/ftpproto"
	"github.com/jgaa/wfde/internal/netio"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/transfer"
	"github.com/jgaa/wfde/internal/vpath"
	"github.com/jgaa/wfde/internal/worker"
	"github.com/jgaa/wfde/log"
)

// ErrNotListening is returned by Close when the acceptor never started.
var ErrNotListening = errors.New("entity: acceptor isn't listening")

// Acceptor binds one Interface to a live TCP listener: every accepted
// connection becomes a session.Session pinned to a worker from Manager's
// pool, with commands run through Dispatcher against Driver (spec.md §3
// "Acceptor", component K). Grounded on FtpServer.Serve/handleAcceptError.
type Acceptor struct {
	Iface      *Interface
	Driver     ftpproto.Driver
	Dispatcher *ftpproto.Dispatcher
	Manager    *session.Manager
	Logger     log.Logger

	// TLSConfig, when set, is offered for AUTH TLS and, if Implicit is
	// true, wraps the listening socket itself.
	TLSConfig *tls.Config
	Implicit  bool

	PublicIP      net.IP
	PasvPortRange *transfer.PortRange
	DialTimeout   time.Duration
	IdleTimeout   time.Duration

	listener  net.Listener
	clientSeq uint64
}

// Listen opens the TCP listener for Iface.ListenAddr, wrapping it in TLS
// when Implicit is set.
func (a *Acceptor) Listen() error {
	ln, err := net.Listen("tcp", a.Iface.ListenAddr())
	if err != nil {
		return fmt.Errorf("entity: listen on %q: %w", a.Iface.ListenAddr(), err)
	}

	if a.Implicit {
		if a.TLSConfig == nil {
			ln.Close()

			return fmt.Errorf("entity: implicit TLS requested without a TLSConfig")
		}

		ln = tls.NewListener(ln, a.TLSConfig)
	}

	a.listener = ln
	a.Logger.Info("listening", "interface", a.Iface.Name(), "addr", ln.Addr())

	return nil
}

// Serve accepts connections until the listener is closed, handing each to
// its own worker. It returns nil on a clean Close, the accept error
// otherwise.
func (a *Acceptor) Serve() error {
	if a.listener == nil {
		return ErrNotListening
	}

	var tempDelay time.Duration

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			stop, finalErr := a.handleAcceptError(err, &tempDelay)
			if stop {
				return finalErr
			}

			continue
		}

		tempDelay = 0

		a.handleConnection(conn)
	}
}

// Addr returns the address the listener is bound to, nil before Listen
// succeeds. Useful when ListenAddr used port 0.
func (a *Acceptor) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}

	return a.listener.Addr()
}

// Close stops accepting new connections; in-flight sessions run to
// completion on their own workers.
func (a *Acceptor) Close() error {
	if a.listener == nil {
		return ErrNotListening
	}

	return a.listener.Close()
}

func (a *Acceptor) handleAcceptError(err error, tempDelay *time.Duration) (bool, error) {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err.Error() == "use of closed network connection" {
		return true, nil
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.ECONNABORTED || errno == syscall.ECONNRESET) {
		return false, nil
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if *tempDelay == 0 {
			*tempDelay = 5 * time.Millisecond
		} else {
			*tempDelay *= 2
		}

		if max := time.Second; *tempDelay > max {
			*tempDelay = max
		}

		a.Logger.Warn("accept error, retrying", "err", err, "delay", *tempDelay)
		time.Sleep(*tempDelay)

		return false, nil
	}

	a.Logger.Error("listener accept error", err)

	return true, err
}

func (a *Acceptor) handleConnection(conn net.Conn) {
	id := atomic.AddUint64(&a.clientSeq, 1)
	idx, w := a.Manager.Pool().AssignWithIndex()

	anon := vpath.NewPermissions()
	anon.Merge(a.Iface.EffectivePermissions())

	sess := session.New(conn, idx, anon)
	logger := a.Logger.With("session", sess.ID(), "clientSeq", id)

	hand := &connHandler{
		acceptor: a,
		sess:     sess,
		worker:   w,
		logger:   logger,
		reply:    netio.NewReplyWriter(conn),
	}

	sess.SetData(hand)

	if a.IdleTimeout > 0 {
		sess.SetIdleTimeout(a.IdleTimeout)
	}

	a.Manager.Register(sess)

	w.Post(hand.run)
}

// connHandler drives one session's control loop and implements
// session.SessionData so command handlers can post work back onto this
// session's own worker (spec.md §5 "Scheduling model").
type connHandler struct {
	acceptor *Acceptor
	sess     *session.Session
	worker   *worker.Worker
	logger   log.Logger
	reply    *netio.ReplyWriter
}

// StartTransfer satisfies session.SessionData: transfer pumps always run on
// the session's own worker, never inline in the control loop goroutine.
func (h *connHandler) StartTransfer(task func()) {
	h.worker.Post(task)
}

// StartTLS satisfies session.SessionData: the AUTH TLS handshake is queued
// as a deferred task (handle_misc.go handleAUTH), and the control loop runs
// it inline, right after the 234 reply has been written, still on this
// session's worker.
func (h *connHandler) StartTLS(task func()) {
	task()
}

func (h *connHandler) run() {
	defer h.acceptor.Manager.CloseSession(h.sess.ID())

	if err := h.reply.WriteReply(ftpproto.StatusServiceReady, h.acceptor.Driver.Banner()); err != nil {
		h.logger.Error("failed to write banner", err)

		return
	}

	ctrlConn := h.sess.Conn()
	ctrl := netio.NewLineReader(ctrlConn)

	for {
		line, err := ctrl.ReadLine()
		if err != nil {
			if errors.Is(err, netio.ErrLineTooLong) {
				_ = h.reply.WriteReply(ftpproto.StatusServiceNotAvailable, "Command line too long")
			}

			return
		}

		h.sess.Touch()

		name, param, ok := ftpproto.ParseLine(line)
		if !ok {
			_ = h.reply.WriteReply(ftpproto.StatusSyntaxErrorNotRecognised, fmt.Sprintf("Unrecognized command %q", line))

			continue
		}

		ctx := &ftpproto.Context{
			Sess:          h.sess,
			State:         h.sess.State(),
			Driver:        h.acceptor.Driver,
			Logger:        h.logger,
			Reply:         h.reply,
			LocalAddr:     h.sess.Conn().LocalAddr(),
			TLSConfig:     h.acceptor.TLSConfig,
			DialTimeout:   h.acceptor.DialTimeout,
			PublicIP:      h.acceptor.PublicIP,
			PasvPortRange: h.acceptor.PasvPortRange,
		}

		reply := h.acceptor.Dispatcher.Dispatch(ctx, name, param)

		// Reply.Message == "" marks a transfer-shaped handler that has
		// already written its own reply(ies) directly (Reply{} zero
		// value convention).
		if reply.Message != "" || reply.Code != 0 {
			if err := h.reply.WriteReply(reply.Code, reply.Message); err != nil {
				h.logger.Error("failed to write reply", err)

				return
			}
		}

		for _, fn := range h.sess.State().TakeDeferred() {
			fn()
		}

		if reply.Close {
			return
		}

		if h.sess.Conn() != ctrlConn {
			// AUTH TLS swapped the connection underneath us: the deferred
			// task above already installed it via Sess.SetConn.
			ctrlConn = h.sess.Conn()
			ctrl = netio.NewLineReader(ctrlConn)
			h.reply = netio.NewReplyWriter(ctrlConn)
		}
	}
}
