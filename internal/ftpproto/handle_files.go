package ftpproto

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/transfer"
	"github.com/jgaa/wfde/internal/vfile"
	"github.com/jgaa/wfde/internal/vpath"
)

// handleRETR opens the resolved file for reading and hands it to the
// transfer pump, honoring a pending REST offset (spec.md §4.5, §4.6,
// grounded on original_source/src/wfde/ftp/wfde_ftp_commands.cpp FtpCmdRetr).
func handleRETR(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanRead) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	f, err := vfile.Open(resolved.Ppath, vfile.OpRead)
	if err != nil {
		return replyVfileError(err, resolved.Vpath)
	}

	if rest := ctx.State.Rest(); rest > 0 {
		if err := f.Seek(rest); err != nil {
			_ = f.Close()

			return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not resume at %d: %v", rest, err))
		}
	}

	p := ctx.transferParams(session.TransferOutgoing)
	p.Data = transfer.NewFileData(f, ctx.State.Type())
	p.Vpath = resolved.Vpath

	ctx.startTransfer(p)

	return Reply{}
}

func handleSTOR(ctx *Context, param string, _ []string) Reply {
	return storeFile(ctx, param, vfile.OpWrite)
}

func handleAPPE(ctx *Context, param string, _ []string) Reply {
	return storeFile(ctx, param, vfile.OpAppend)
}

func storeFile(ctx *Context, param string, op vfile.Operation) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	allowed := resolved.Mount.Can(vpath.CanWrite)
	if isHiddenName(resolved.Vpath) {
		allowed = allowed || resolved.Mount.Can(vpath.CanCreateHiddenFiles)
	}

	if !allowed {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	f, err := vfile.Open(resolved.Ppath, op)
	if err != nil {
		return replyVfileError(err, resolved.Vpath)
	}

	if rest := ctx.State.Rest(); rest > 0 && op == vfile.OpWrite {
		if err := f.Seek(rest); err != nil {
			_ = f.Close()

			return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not resume at %d: %v", rest, err))
		}
	}

	p := ctx.transferParams(session.TransferIncoming)
	p.Data = transfer.NewFileData(f, ctx.State.Type())
	p.Vpath = resolved.Vpath

	ctx.startTransfer(p)

	return Reply{}
}

// handleSTOU stores under a server-chosen unique name in the current
// directory; it is incompatible with a pending REST (spec.md §8).
func handleSTOU(ctx *Context, _ string, _ []string) Reply {
	if ctx.State.Rest() != 0 {
		return Replyf(StatusActionNotTaken, "STOU cannot be combined with REST")
	}

	name := "ftp-" + uuid.NewString()

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), name)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanCreateFile) && !resolved.Mount.Can(vpath.CanWrite) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	f, err := vfile.Open(resolved.Ppath, vfile.OpWriteNew)
	if err != nil {
		return replyVfileError(err, resolved.Vpath)
	}

	p := ctx.transferParams(session.TransferIncoming)
	p.Data = transfer.NewFileData(f, ctx.State.Type())
	p.Vpath = resolved.Vpath
	p.OpeningMessage = fmt.Sprintf("FILE: %s", resolved.Vpath)

	ctx.startTransfer(p)

	return Reply{}
}

// handleDELE removes a file, requiring CAN_DELETE_FILE.
func handleDELE(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanDeleteFile) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	if err := ctx.Driver.Filesystem().Remove(resolved.Ppath); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not delete %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileOK, fmt.Sprintf("Removed file %s", resolved.Vpath))
}

// handleRNFR stages a rename source, requiring CAN_RENAME and that the
// source exist.
func handleRNFR(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanRename) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	if _, err := ctx.Driver.Filesystem().Stat(resolved.Ppath); err != nil {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("Could not access %s: %v", resolved.Vpath, err))
	}

	ctx.State.SetRnfr(resolved.Ppath)

	return Replyf(StatusFileActionPending, "Sure, give me a target")
}

// handleRNTO completes a rename staged by RNFR.
func handleRNTO(ctx *Context, param string, _ []string) Reply {
	src := ctx.State.Rnfr()
	if src == "" {
		return Replyf(StatusBadCommandSequence, "RNFR is expected before RNTO")
	}

	ctx.State.ClearRnfr()

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanRename) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	if err := ctx.Driver.Filesystem().Rename(src, resolved.Ppath); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not rename to %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileOK, "Rename successful")
}

// handleALLO is a no-op acknowledgement; wfde never pre-allocates storage
// but records the hint for drivers that enforce a storage quota.
func handleALLO(ctx *Context, param string, _ []string) Reply {
	var size int64
	if _, err := fmt.Sscanf(param, "%d", &size); err != nil {
		return Replyf(StatusSyntaxErrorParameters, fmt.Sprintf("Couldn't parse size: %v", err))
	}

	ctx.State.SetAllo(size)

	return Replyf(StatusOK, "Done!")
}

// handleREST records the restart offset for the next RETR/STOR/APPE.
// Resuming in ASCII mode is rejected unless the offset is zero (spec.md §8),
// since the byte offset would no longer correspond to the client's
// translated stream.
func handleREST(ctx *Context, param string, _ []string) Reply {
	var offset int64
	if _, err := fmt.Sscanf(param, "%d", &offset); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Couldn't parse size: %v", err))
	}

	if offset != 0 && ctx.State.Type() == session.TypeASCII {
		return Replyf(StatusActionNotTaken, "Resuming transfers is not allowed in ASCII mode")
	}

	ctx.State.SetRest(offset)

	return Replyf(StatusFileActionPending, "OK")
}

// handleSIZE reports a file's byte size. Rejected in ASCII mode: computing
// the ASCII-translated size would require scanning the whole file
// (spec.md §8, grounded on the teacher's handle_files.go handleSIZE).
func handleSIZE(ctx *Context, param string, _ []string) Reply {
	if ctx.State.Type() == session.TypeASCII {
		return Replyf(StatusActionNotTaken, "SIZE not allowed in ASCII mode")
	}

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	info, err := ctx.Driver.Filesystem().Stat(resolved.Ppath)
	if err != nil {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("Could not access %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileStatus, fmt.Sprintf("%d", info.Size()))
}

// handleMDTM reports a file's last-modified time (RFC 3659 §3).
func handleMDTM(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	info, err := ctx.Driver.Filesystem().Stat(resolved.Ppath)
	if err != nil {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("Could not access %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileStatus, info.ModTime().UTC().Format(mdtmTimeLayout))
}

// handleMFMT sets a file's modification time
// (https://tools.ietf.org/html/draft-somers-ftp-mfxx-04#section-3.1),
// requiring CAN_SET_TIMESTAMP.
func handleMFMT(ctx *Context, param string, groups []string) Reply {
	mtime, err := time.Parse(mdtmTimeLayout, groups[1])
	if err != nil {
		return Replyf(StatusSyntaxErrorParameters, fmt.Sprintf("Couldn't parse mtime: %v", err))
	}

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), groups[2])
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanSetTimestamp) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	if err := ctx.Driver.Filesystem().Chtimes(resolved.Ppath, mtime, mtime); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Couldn't set mtime for %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileStatus, fmt.Sprintf("Modify=%s; %s", groups[1], groups[2]))
}

const mdtmTimeLayout = "20060102150405"

func replyVfileError(err error, vp string) Reply {
	switch {
	case errors.Is(err, vfile.ErrNotFound):
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("%s: not found", vp))
	case errors.Is(err, vfile.ErrAlreadyExists):
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("%s: already exists", vp))
	default:
		return Replyf(StatusActionNotTaken, fmt.Sprintf("%s: %v", vp, err))
	}
}
