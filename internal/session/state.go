// Package session holds per-connection state: the FTP protocol state
// machine (FTPState) and the Session object plus its Manager, which keeps
// every session pinned to the worker that accepted it and retires idle
// sessions on a housekeeping tick (spec.md §4.2, §4.8).
package session

import (
	"net"
	"sync"

	"github.com/jgaa/wfde/internal/listing"
)

// Direction is the FTP state's current transfer direction.
type Direction int

// Supported transfer directions.
const (
	TransferNone Direction = iota
	TransferIncoming
	TransferOutgoing
)

// Initiation is how the current data connection was (or will be) set up.
type Initiation int

// Supported initiation modes.
const (
	InitiationNone Initiation = iota
	InitiationPort
	InitiationPasv
)

// TransferType is the RFC 959 TYPE in effect for the session.
type TransferType int

// Supported transfer types.
const (
	TypeASCII TransferType = iota
	TypeBinary
)

// PasvAcceptor abstracts a listening passive-mode data acceptor. Declared
// here rather than imported from internal/transfer to avoid a package
// cycle; internal/transfer provides the concrete implementation.
type PasvAcceptor interface {
	Accept() (net.Conn, error)
	Addr() net.Addr
	Close() error
}

// DeferredTask is a unit of work queued by a command handler to run only
// after its reply has been flushed to the control connection - the TLS
// upgrade rule (spec.md §5 "TLS upgrade rule") is the motivating case.
type DeferredTask func()

// FTPState is the per-session FTP protocol state machine (spec.md §4.2,
// component G). It is reset to a clean transfer-less state after every
// transfer completes; login identity and TLS flags survive resets.
type FTPState struct {
	mu sync.RWMutex

	isLoggedIn bool
	loginName  string
	pendingUser string

	transfer     Direction
	initiation   Initiation
	transferType TransferType

	rest         int64
	allo         int64
	abortPending bool
	rnfr         string

	facts           listing.Facts
	listHiddenFiles bool
	hashAlgo        string

	pasv        PasvAcceptor
	portAddr    string // dial target for active mode; set iff initiation == InitiationPort

	ccEncrypted      bool
	encryptTransfers bool

	deferred []DeferredTask

	prevCmd       string
	abortCallback func()
}

// NewFTPState returns a freshly logged-out state: ASCII type, every MLST
// fact enabled, no pending transfer.
func NewFTPState() *FTPState {
	return &FTPState{
		transferType: TypeASCII,
		facts:        listing.DefaultFacts,
		hashAlgo:     "SHA-256",
	}
}

// HashAlgo returns the name ("CRC32", "MD5", "SHA-1", "SHA-256", "SHA-512")
// of the digest algorithm OPTS HASH last selected; SHA-256 by default.
func (s *FTPState) HashAlgo() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hashAlgo
}

// SetHashAlgo records the digest algorithm selected by OPTS HASH.
func (s *FTPState) SetHashAlgo(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hashAlgo = name
}

// IsLoggedIn reports whether USER/PASS has completed successfully.
func (s *FTPState) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isLoggedIn
}

// SetLoggedIn records a successful login under loginName.
func (s *FTPState) SetLoggedIn(loginName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isLoggedIn = true
	s.loginName = loginName
}

// LoginName returns the authenticated user, or "" before login completes.
func (s *FTPState) LoginName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loginName
}

// SetPendingUser records the name given by USER, awaiting PASS.
func (s *FTPState) SetPendingUser(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingUser = name
}

// PendingUser returns the name given by the most recent USER command.
func (s *FTPState) PendingUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pendingUser
}

// Transfer returns the current transfer direction.
func (s *FTPState) Transfer() Direction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.transfer
}

// Initiation returns how the pending/active data connection was set up.
func (s *FTPState) Initiation() Initiation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.initiation
}

// Type returns the ASCII/binary transfer type.
func (s *FTPState) Type() TransferType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.transferType
}

// SetType changes the transfer type (TYPE command).
func (s *FTPState) SetType(t TransferType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transferType = t
}

// Rest returns the pending REST offset, 0 if none was set.
func (s *FTPState) Rest() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rest
}

// SetRest records a REST offset for the next transfer.
func (s *FTPState) SetRest(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rest = offset
}

// Allo returns the ALLO allocation hint, 0 if none was given.
func (s *FTPState) Allo() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.allo
}

// SetAllo records an ALLO allocation hint.
func (s *FTPState) SetAllo(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allo = size
}

// AbortPending reports whether an ABOR arrived mid-transfer and still
// needs its second "closing data connection" reply.
func (s *FTPState) AbortPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.abortPending
}

// SetAbortPending flips the abort-pending flag.
func (s *FTPState) SetAbortPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortPending = pending
}

// Rnfr returns the pending RNFR source path, "" if none is pending.
func (s *FTPState) Rnfr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rnfr
}

// SetRnfr records the RNFR source path awaiting an RNTO.
func (s *FTPState) SetRnfr(vpath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rnfr = vpath
}

// ClearRnfr drops any pending RNFR source, e.g. after RNTO completes or a
// non-RNTO command interrupts the sequence.
func (s *FTPState) ClearRnfr() {
	s.SetRnfr("")
}

// Facts returns the enabled MLST/MLSD fact bitmap.
func (s *FTPState) Facts() listing.Facts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.facts
}

// SetFacts replaces the enabled MLST/MLSD fact bitmap (OPTS MLST).
func (s *FTPState) SetFacts(f listing.Facts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facts = f
}

// ListHiddenFiles reports whether "LIST -a" was requested for the pending
// listing.
func (s *FTPState) ListHiddenFiles() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listHiddenFiles
}

// SetListHiddenFiles records whether the pending listing should include
// dotfiles.
func (s *FTPState) SetListHiddenFiles(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listHiddenFiles = v
}

// SetPassive arms passive mode: initiation becomes InitiationPasv and
// acceptor must already be listening (spec.md §4.2 invariant).
func (s *FTPState) SetPassive(acceptor PasvAcceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initiation = InitiationPasv
	s.pasv = acceptor
	s.portAddr = ""
}

// SetActive arms active mode: initiation becomes InitiationPort with addr
// as the dial target (spec.md §4.2 invariant).
func (s *FTPState) SetActive(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initiation = InitiationPort
	s.portAddr = addr
	s.pasv = nil
}

// DataEndpoint returns the acceptor and dial target currently armed for the
// next data connection.
func (s *FTPState) DataEndpoint() (PasvAcceptor, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pasv, s.portAddr
}

// BeginTransfer records the direction of a freshly started transfer.
func (s *FTPState) BeginTransfer(dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfer = dir
}

// ResetAfterTransfer clears per-transfer state once a transfer completes,
// per spec.md §4.2 ("Reset after each transfer completes"). Login identity
// and TLS flags are untouched.
func (s *FTPState) ResetAfterTransfer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfer = TransferNone
	s.initiation = InitiationNone
	s.rest = 0
	s.allo = 0
	s.abortPending = false

	if s.pasv != nil {
		_ = s.pasv.Close()
	}

	s.pasv = nil
	s.portAddr = ""
}

// ControlEncrypted reports whether the control connection is currently
// running over TLS.
func (s *FTPState) ControlEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ccEncrypted
}

// SetControlEncrypted marks the control connection as upgraded to TLS.
func (s *FTPState) SetControlEncrypted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ccEncrypted = v
}

// EncryptTransfers reports whether PROT P is in effect for data transfers.
func (s *FTPState) EncryptTransfers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.encryptTransfers
}

// SetEncryptTransfers records the PROT level (C clears it, P sets it).
func (s *FTPState) SetEncryptTransfers(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.encryptTransfers = v
}

// Defer queues fn to run once the in-flight reply has been flushed (the
// TLS-upgrade rule: AUTH TLS must reply before the handshake starts).
func (s *FTPState) Defer(fn DeferredTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deferred = append(s.deferred, fn)
}

// TakeDeferred removes and returns every queued deferred task, in order.
func (s *FTPState) TakeDeferred() []DeferredTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.deferred
	s.deferred = nil

	return out
}

// PrevCmd returns the name of the last successfully dispatched command,
// used by the need_prev_cmd gate (spec.md §4.4).
func (s *FTPState) PrevCmd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.prevCmd
}

// SetPrevCmd records the most recently dispatched command name.
func (s *FTPState) SetPrevCmd(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prevCmd = name
}

// SetAbortCallback installs the callback the dispatcher fires exactly once
// when abort_pending is set (spec.md §4.5 "Abort protocol"): it closes the
// data socket/acceptor so the running transfer loop observes the abort.
func (s *FTPState) SetAbortCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortCallback = fn
}

// FireAbortIfPending runs and clears the abort callback iff abort_pending
// is set and a callback is installed.
func (s *FTPState) FireAbortIfPending() {
	s.mu.Lock()
	pending := s.abortPending
	cb := s.abortCallback
	if pending {
		s.abortCallback = nil
	}
	s.mu.Unlock()

	if pending && cb != nil {
		cb()
	}
}
