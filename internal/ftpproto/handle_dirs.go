package ftpproto

import (
	"fmt"
	"strings"

	"github.com/jgaa/wfde/internal/listing"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vpath"
)

// handleCWD changes the session's working directory, requiring CAN_ENTER on
// the resolved mount and that the target actually be a directory.
func handleCWD(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanEnter) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	info, err := ctx.Driver.Filesystem().Stat(resolved.Ppath)
	if err != nil {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("Could not access %s: %v", resolved.Vpath, err))
	}

	if !info.IsDir() {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("%s is not a directory", resolved.Vpath))
	}

	ctx.Sess.SetCWD(resolved.Vpath)

	return Replyf(StatusFileOK, fmt.Sprintf("CWD command successful, now at %s", resolved.Vpath))
}

// handleCDUP is CWD to the parent directory.
func handleCDUP(ctx *Context, _ string, _ []string) Reply {
	return handleCWD(ctx, "..", nil)
}

// handlePWD reports the session's current working directory, RFC 959 §4.2
// quote-doubled.
func handlePWD(ctx *Context, _ string, _ []string) Reply {
	return Replyf(StatusPathCreated, fmt.Sprintf(`"%s" directory is current directory`, quoteDoubling(ctx.Sess.CWD())))
}

// handleMKD creates a directory, requiring CAN_CREATE_DIR (or
// CAN_CREATE_HIDDEN_DIRS for a dotfile name) on the governing mount.
func handleMKD(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	need := vpath.CanCreateDir
	if isHiddenName(resolved.Vpath) {
		need = vpath.CanCreateHiddenDirs
	}

	if !resolved.Mount.Can(need) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	if err := ctx.Driver.Filesystem().Mkdir(resolved.Ppath, 0o755); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not create %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusPathCreated, fmt.Sprintf(`"%s" directory created`, quoteDoubling(resolved.Vpath)))
}

// handleRMD removes an empty directory, requiring CAN_DELETE_DIR.
func handleRMD(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanDeleteDir) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	if err := ctx.Driver.Filesystem().Remove(resolved.Ppath); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not remove %s: %v", resolved.Vpath, err))
	}

	return Replyf(StatusFileOK, fmt.Sprintf("Removed directory %s", resolved.Vpath))
}

// handleLIST, handleNLST and handleMLSD all share the same shape: resolve
// the target directory, build a listing.Driver over it, and pump its
// chunked output across the already-armed data connection (spec.md §4.3).
func handleLIST(ctx *Context, param string, _ []string) Reply {
	return startListing(ctx, param, listing.FormatLIST)
}

func handleNLST(ctx *Context, param string, _ []string) Reply {
	return startListing(ctx, param, listing.FormatNLST)
}

func handleMLSD(ctx *Context, param string, _ []string) Reply {
	return startListing(ctx, param, listing.FormatMLSD)
}

func startListing(ctx *Context, param string, format listing.Format) Reply {
	target, hidden := stripListFlags(param)

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), target)
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanList) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	it, err := listing.NewIterator(ctx.Driver.Filesystem(), resolved.Ppath, resolved.Vpath, ctx.Sess.Permissions())
	if err != nil {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("Could not list %s: %v", resolved.Vpath, err))
	}

	opts := listing.Options{
		Format:          format,
		ListHiddenFiles: hidden || ctx.State.ListHiddenFiles(),
		CanSeeHidden:    resolved.Mount.Can(vpath.CanSeeHiddenFiles) || resolved.Mount.Can(vpath.CanSeeHiddenDirs),
		Facts:           ctx.State.Facts(),
		UniqueOf:        listing.NewUniqueOf(ctx.Sess.ID(), resolved.Vpath),
		PermOf:          func(listing.Entry) string { return listing.PermString(resolved.Mount) },
	}

	driver := listing.NewDriver(it, opts)

	p := ctx.transferParams(session.TransferOutgoing)
	p.Data = newListingStream(driver)
	p.Vpath = resolved.Vpath

	ctx.startTransfer(p)

	return Reply{}
}

// handleMLST replies with a single-entry machine-readable listing of one
// file or directory, without a data connection (RFC 3659 §7.1).
func handleMLST(ctx *Context, param string, _ []string) Reply {
	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), param)
	if err != nil {
		return replyResolveError(err)
	}

	info, err := ctx.Driver.Filesystem().Stat(resolved.Ppath)
	if err != nil {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("Could not access %s: %v", resolved.Vpath, err))
	}

	entry := listing.Entry{Name: resolved.Mount.VpathFileName(), Info: info}
	if entry.Name == "" {
		entry.Name = strings.TrimPrefix(resolved.Vpath, "/")
	}

	opts := listing.Options{
		Facts:    ctx.State.Facts(),
		UniqueOf: listing.NewUniqueOf(ctx.Sess.ID(), parentVpath(resolved.Vpath)),
		PermOf:   func(listing.Entry) string { return listing.PermString(resolved.Mount) },
	}

	line := strings.TrimRight(string(listing.RenderMLSxFact(entry, opts)), "\r\n")

	closeFn := ctx.Reply.BeginMultiline(StatusFileOK, "File details")
	_ = ctx.Reply.WriteLine(line)
	_ = closeFn()

	return Reply{}
}

// stripListFlags strips a leading "-a"/"-l"/"-al"/"-la" argument, as clients
// that speak Unix ls conventions sometimes send one.
func stripListFlags(param string) (target string, hidden bool) {
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return "", false
	}

	first := fields[0]
	if len(first) >= 2 && first[0] == '-' && strings.Trim(first[1:], "al") == "" {
		hidden = strings.Contains(first, "a")

		return strings.Join(fields[1:], " "), hidden
	}

	return param, false
}

// parentVpath returns the directory portion of vp, "/" if vp names a
// top-level entry.
func parentVpath(vp string) string {
	idx := strings.LastIndexByte(strings.TrimSuffix(vp, "/"), '/')
	if idx <= 0 {
		return "/"
	}

	return vp[:idx]
}

func isHiddenName(vp string) bool {
	idx := strings.LastIndexByte(vp, '/')
	name := vp[idx+1:]

	return len(name) > 0 && name[0] == '.'
}

// quoteDoubling doubles every '"' in s, per RFC 959 §4.2's rule for
// embedding a pathname in a quoted reply string.
func quoteDoubling(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

func replyResolveError(err error) Reply {
	return Replyf(StatusActionNotTakenNoFile, err.Error())
}
