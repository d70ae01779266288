package ftpproto

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	"github.com/jgaa/wfde/internal/listing"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vpath"
)

// handleAUTH starts the RFC 2228 TLS upgrade: it replies immediately, then
// defers the actual handshake so it only begins once the reply has been
// flushed (spec.md §5 "TLS upgrade rule", grounded on
// original_source/src/wfde/ftp/wfde_ftp_commands.cpp FtpCmdAuth).
func handleAUTH(ctx *Context, param string, _ []string) Reply {
	if ctx.State.ControlEncrypted() {
		return Replyf(StatusTLSRequired, "The control connection is already encrypted")
	}

	if !strings.EqualFold(param, "TLS") && !strings.EqualFold(param, "TLS-C") && !strings.EqualFold(param, "SSL") {
		return Replyf(StatusNotImplemented, fmt.Sprintf("AUTH %s is not supported", param))
	}

	if ctx.TLSConfig == nil {
		return Replyf(StatusNotImplemented, "TLS is not configured")
	}

	sess := ctx.Sess
	state := ctx.State
	tlsConfig := ctx.TLSConfig
	logger := ctx.Logger

	state.Defer(func() {
		sess.Data().StartTLS(func() {
			tlsConn := tls.Server(sess.Conn(), tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				if logger != nil {
					logger.Error("TLS handshake failed", err, "session", sess.ID())
				}

				_ = sess.Close()

				return
			}

			sess.SetConn(tlsConn)
			state.SetControlEncrypted(true)
		})
	})

	return Replyf(StatusAuthAccepted, "AUTH command OK, expecting TLS negotiation")
}

// handlePBSZ is a no-op acknowledgement; wfde has no block-mode buffer to
// size, but the command is mandatory ahead of PROT (RFC 2228 §3).
func handlePBSZ(ctx *Context, _ string, _ []string) Reply {
	return Replyf(StatusOK, "Whatever you say")
}

// handlePROT sets whether the data channel is encrypted: "P" for private,
// anything else clears it.
func handlePROT(ctx *Context, param string, _ []string) Reply {
	ctx.State.SetEncryptTransfers(strings.EqualFold(param, "P"))

	return Replyf(StatusOK, "OK")
}

// handleSYST always reports the same fixed system type, matching the
// teacher's rationale: hiding the real OS tells an attacker nothing useful.
func handleSYST(ctx *Context, _ string, _ []string) Reply {
	return Replyf(StatusSystemType, "UNIX Type: L8")
}

// handleTYPE switches between ASCII and binary transfer representation.
func handleTYPE(ctx *Context, param string, _ []string) Reply {
	switch strings.ToUpper(strings.TrimSpace(param)) {
	case "I":
		ctx.State.SetType(session.TypeBinary)
		return Replyf(StatusOK, "Type set to binary")
	case "A", "A N":
		ctx.State.SetType(session.TypeASCII)
		return Replyf(StatusOK, "Type set to ASCII")
	default:
		return Replyf(StatusSyntaxErrorNotRecognised, "Not understood")
	}
}

// handleSTAT dispatches to the server-status or single-file-status form
// depending on whether a parameter was given (RFC 959 §4.1.3).
func handleSTAT(ctx *Context, param string, groups []string) Reply {
	if param == "" {
		return statServer(ctx)
	}

	return statFile(ctx, param)
}

func statServer(ctx *Context) Reply {
	closeFn := ctx.Reply.BeginMultiline(StatusSystemStatus, "Server status")
	defer closeFn()

	_ = ctx.Reply.WriteLine(fmt.Sprintf("Connected from %s", ctx.Sess.Conn().RemoteAddr()))

	if client := ctx.Sess.Client(); client != nil {
		_ = ctx.Reply.WriteLine(fmt.Sprintf("Logged in as %s", client.Username))
	} else {
		_ = ctx.Reply.WriteLine("Not logged in yet")
	}

	_ = ctx.Reply.WriteLine(fmt.Sprintf("TYPE: %s", typeName(ctx.State.Type())))
	_ = ctx.Reply.WriteLine(ctx.Driver.Banner())

	return Reply{}
}

// statFile renders the same MLSx-ish single-line status the teacher emits
// for `STAT <path>`, reusing the resolve+stat path MLST already has.
func statFile(ctx *Context, param string) Reply {
	return handleMLST(ctx, param, nil)
}

func typeName(t session.TransferType) string {
	if t == session.TypeBinary {
		return "binary"
	}

	return "ASCII"
}

// handleSITE dispatches the supported SITE subcommands (spec.md §9
// supplemented features).
func handleSITE(ctx *Context, param string, _ []string) Reply {
	parts := strings.SplitN(strings.TrimSpace(param), " ", 2)
	if len(parts) < 2 {
		return Replyf(StatusSyntaxErrorNotRecognised, "Not understood SITE subcommand")
	}

	switch strings.ToUpper(parts[0]) {
	case "CHMOD":
		return siteChmod(ctx, parts[1])
	case "SYMLINK":
		return siteSymlink(ctx, parts[1])
	default:
		return Replyf(StatusSyntaxErrorNotRecognised, "Not understood SITE subcommand")
	}
}

func siteChmod(ctx *Context, param string) Reply {
	args := strings.SplitN(param, " ", 2)
	if len(args) != 2 {
		return Replyf(StatusSyntaxErrorParameters, "SITE CHMOD needs a mode and a path")
	}

	mode, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil {
		return Replyf(StatusSyntaxErrorParameters, fmt.Sprintf("Invalid mode %q: %v", args[0], err))
	}

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), args[1])
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanSetPermissions) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	ext, ok := ctx.Driver.(ChmodExtension)
	if !ok {
		return Replyf(StatusCommandNotImplemented, "CHMOD is not implemented")
	}

	if err := ext.Chmod(resolved.Ppath, uint32(mode)); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Couldn't chmod %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusOK, "SITE CHMOD command successful")
}

func siteSymlink(ctx *Context, param string) Reply {
	args := strings.SplitN(param, " ", 2)
	if len(args) != 2 {
		return Replyf(StatusSyntaxErrorParameters, "SITE SYMLINK needs a target and a link name")
	}

	target, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), args[0])
	if err != nil {
		return replyResolveError(err)
	}

	link, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), args[1])
	if err != nil {
		return replyResolveError(err)
	}

	ext, ok := ctx.Driver.(SymlinkExtension)
	if !ok {
		return Replyf(StatusCommandNotImplemented, "SYMLINK is not implemented")
	}

	if err := ext.Symlink(target.Ppath, link.Ppath); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Couldn't symlink %s -> %s: %v", link.Vpath, target.Vpath, err))
	}

	return Replyf(StatusOK, "SITE SYMLINK command successful")
}

// handleOPTS handles option sub-commands: UTF8 (always on, acknowledged),
// MLST (selects the enabled fact list), and HASH (selects the active digest
// algorithm, delegated to handle_hash.go).
func handleOPTS(ctx *Context, param string, _ []string) Reply {
	args := strings.SplitN(param, " ", 2)

	switch strings.ToUpper(args[0]) {
	case "UTF8":
		return Replyf(StatusOK, "I'm in UTF8 only anyway")
	case "MLST":
		rest := ""
		if len(args) > 1 {
			rest = args[1]
		}

		ctx.State.SetFacts(parseFactList(rest))

		return Replyf(StatusOK, "MLST OPTS command successful")
	case "HASH":
		rest := ""
		if len(args) > 1 {
			rest = args[1]
		}

		return optsHash(ctx, rest)
	default:
		return Replyf(StatusSyntaxErrorNotRecognised, "Don't know this option")
	}
}

// handleNOOP does nothing besides reply OK; it exists to keep idle control
// connections (and housekeeping timers) alive.
func handleNOOP(ctx *Context, _ string, _ []string) Reply {
	return Replyf(StatusOK, "OK")
}

// handleCLNT records the client-identification string a cooperative client
// sends for diagnostics; wfde never rejects based on its content.
func handleCLNT(ctx *Context, param string, _ []string) Reply {
	ctx.Sess.SetClientID(param)

	return Replyf(StatusOK, "Good to know")
}

// handleFEAT lists the RFC 2389 feature set, varying with what the driver
// and build actually support (spec.md §9, grounded on the teacher's
// handle_misc.go handleFEAT).
func handleFEAT(ctx *Context, _ string, _ []string) Reply {
	closeFn := ctx.Reply.BeginMultiline(StatusSystemStatus, "These are my features")
	defer closeFn()

	features := []string{
		"CLNT",
		"UTF8",
		"SIZE",
		"MDTM",
		"MFMT",
		"REST STREAM",
		"TVFS",
		"MLSD",
		"MLST Type*;Modify*;Size*;Unique*;Perm*;",
	}

	if ctx.TLSConfig != nil {
		features = append(features, "AUTH TLS", "PBSZ", "PROT")
	}

	if _, ok := ctx.Driver.(AvailableSpaceExtension); ok {
		features = append(features, "AVBL")
	}

	features = append(features, "COMB")

	for _, f := range features {
		_ = ctx.Reply.WriteLine(" " + f)
	}

	return Reply{}
}

// handleQUIT acknowledges and marks the session for closing once the reply
// is flushed; the connection loop tears the socket down.
func handleQUIT(ctx *Context, _ string, _ []string) Reply {
	return replyClosing(StatusClosingControlConn, "Goodbye")
}

// handleAVBL reports free space on a mount via the optional
// AvailableSpaceExtension, replying 502 when the driver doesn't implement
// it (spec.md §9).
func handleAVBL(ctx *Context, param string, _ []string) Reply {
	ext, ok := ctx.Driver.(AvailableSpaceExtension)
	if !ok {
		return Replyf(StatusCommandNotImplemented, "This extension hasn't been implemented")
	}

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	available, err := ext.AvailableSpace(resolved.Ppath)
	if err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Couldn't get space for %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileStatus, fmt.Sprintf("%d", available))
}

// parseFactList turns a semicolon-separated "Type;Size;" style OPTS MLST
// argument into a Facts bitmap; unknown fact names are ignored.
func parseFactList(s string) (f listing.Facts) {
	for _, name := range strings.Split(s, ";") {
		name = strings.TrimSpace(name)

		switch strings.ToLower(name) {
		case "type":
			f |= listing.FactType
		case "modify":
			f |= listing.FactModify
		case "size":
			f |= listing.FactSize
		case "unique":
			f |= listing.FactUnique
		case "perm":
			f |= listing.FactPerm
		}
	}

	return f
}
