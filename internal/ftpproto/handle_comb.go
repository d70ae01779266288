package ftpproto

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jgaa/wfde/internal/vfile"
	"github.com/jgaa/wfde/internal/vpath"
)

// handleCOMB appends a series of previously uploaded fragments onto a target
// file, in order, deleting each fragment once it has been copied (spec.md
// §9, grounded on the teacher's handleCOMB/combineFiles). The target's
// STOR-style permission governs the whole operation.
func handleCOMB(ctx *Context, param string, _ []string) Reply {
	parts, err := unquoteSpaceSeparatedParams(param)
	if err != nil || len(parts) < 2 {
		return Replyf(StatusSyntaxErrorParameters, fmt.Sprintf("invalid COMB parameters: %s", param))
	}

	target, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), parts[0])
	if err != nil {
		return replyResolveError(err)
	}

	if !target.Mount.Can(vpath.CanWrite) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	sources := make([]string, 0, len(parts)-1)

	for _, p := range parts[1:] {
		resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), p)
		if err != nil {
			return replyResolveError(err)
		}

		if !resolved.Mount.Can(vpath.CanRead) || !resolved.Mount.Can(vpath.CanDeleteFile) {
			return Replyf(StatusActionNotTakenNoFile, "Permission denied")
		}

		sources = append(sources, resolved.Ppath)
	}

	op := vfile.OpWriteNew

	if _, err := ctx.Driver.Filesystem().Stat(target.Ppath); err == nil {
		op = vfile.OpAppend
	} else if !errors.Is(err, os.ErrNotExist) {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not access %s: %v", target.Vpath, err))
	}

	if reply, ok := combineFiles(ctx, target.Ppath, op, sources); !ok {
		return reply
	}

	return Replyf(StatusFileOK, fmt.Sprintf("%s combined from %d fragments", target.Vpath, len(sources)))
}

func combineFiles(ctx *Context, targetPpath string, op vfile.Operation, sources []string) (Reply, bool) {
	dst, err := vfile.Open(targetPpath, op)
	if err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not access %s: %v", targetPpath, err)), false
	}
	defer dst.Close()

	dstStream := vfile.NewStream(dst)

	for _, src := range sources {
		if reply, ok := combineOne(dstStream, src); !ok {
			return reply, false
		}

		if err := ctx.Driver.Filesystem().Remove(src); err != nil {
			return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not delete %s after combine: %v", src, err)), false
		}
	}

	return Reply{}, true
}

func combineOne(dst io.Writer, srcPpath string) (Reply, bool) {
	src, err := vfile.Open(srcPpath, vfile.OpRead)
	if err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not access %s: %v", srcPpath, err)), false
	}
	defer src.Close()

	if _, err := io.Copy(dst, vfile.NewStream(src)); err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("Could not combine %s: %v", srcPpath, err)), false
	}

	return Reply{}, true
}

// unquoteSpaceSeparatedParams splits a COMB-style argument list on spaces,
// honoring double-quoted fields that themselves contain spaces.
func unquoteSpaceSeparatedParams(params string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(params))
	reader.Comma = ' '

	return reader.Read()
}
