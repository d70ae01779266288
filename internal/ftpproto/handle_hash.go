package ftpproto

import (
	"crypto/md5"  //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"strconv"
	"strings"

	"github.com/jgaa/wfde/internal/vfile"
	"github.com/jgaa/wfde/internal/vpath"
)

var errUnknownHashAlgo = errors.New("ftpproto: unknown hash algorithm")

// hashAlgoNames maps the RFC-3230-ish OPTS HASH algorithm name to the
// constructor used to compute it (spec.md §9, grounded on the teacher's
// getHashMapping/handleGenericHash).
var hashAlgoNames = map[string]func() hash.Hash{
	"CRC32":  func() hash.Hash { return crc32.NewIEEE() },
	"MD5":    md5.New,
	"SHA-1":  sha1.New,
	"SHA-256": sha256.New,
	"SHA-512": sha512.New,
}

// optsHash implements "OPTS HASH [algo]": with no argument it reports the
// currently selected algorithm, with one it switches to it.
func optsHash(ctx *Context, arg string) Reply {
	if arg == "" {
		return Replyf(StatusOK, ctx.State.HashAlgo())
	}

	name := strings.ToUpper(arg)
	if _, ok := hashAlgoNames[name]; !ok {
		return Replyf(StatusSyntaxErrorParameters, "Unknown algorithm, current selection not changed")
	}

	ctx.State.SetHashAlgo(name)

	return Replyf(StatusOK, name)
}

// handleHASH computes a digest of a file (or byte range of one) using the
// algorithm last selected by OPTS HASH (RFC 3659-style, draft-bryan-ftpext-hash).
func handleHASH(ctx *Context, param string, _ []string) Reply {
	return genericHash(ctx, param, ctx.State.HashAlgo(), false)
}

func handleXCRC(ctx *Context, param string, _ []string) Reply  { return genericHash(ctx, param, "CRC32", true) }
func handleXMD5(ctx *Context, param string, _ []string) Reply  { return genericHash(ctx, param, "MD5", true) }
func handleXSHA1(ctx *Context, param string, _ []string) Reply { return genericHash(ctx, param, "SHA-1", true) }
func handleXSHA256(ctx *Context, param string, _ []string) Reply {
	return genericHash(ctx, param, "SHA-256", true)
}
func handleXSHA512(ctx *Context, param string, _ []string) Reply {
	return genericHash(ctx, param, "SHA-512", true)
}

// genericHash backs both the standard HASH command and the non-standard
// XCRC/MD5/XSHA* shortcuts, which additionally accept an optional byte
// range: "path [start [end]]" (spec.md §9, grounded on the teacher's
// handleGenericHash/computeHashForFile).
func genericHash(ctx *Context, param, algoName string, customMode bool) Reply {
	args := strings.SplitN(strings.TrimSpace(param), " ", 3)
	if len(args) == 0 || args[0] == "" {
		return Replyf(StatusSyntaxErrorParameters, "A path is required")
	}

	resolved, err := Resolve(ctx.Sess.Permissions(), ctx.Sess.CWD(), args[0])
	if err != nil {
		return replyResolveError(err)
	}

	if !resolved.Mount.Can(vpath.CanRead) {
		return Replyf(StatusActionNotTakenNoFile, "Permission denied")
	}

	info, err := ctx.Driver.Filesystem().Stat(resolved.Ppath)
	if err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("%s: %v", resolved.Vpath, err))
	}

	if !info.Mode().IsRegular() {
		return Replyf(StatusActionNotTakenNoFile, fmt.Sprintf("%s is not a regular file", resolved.Vpath))
	}

	start, end := int64(0), info.Size()

	if customMode && len(args) > 1 {
		if v, perr := strconv.ParseInt(args[1], 10, 64); perr == nil {
			start = v
		}

		if len(args) > 2 {
			if v, perr := strconv.ParseInt(args[2], 10, 64); perr == nil {
				end = v
			}
		}
	}

	digest, err := computeHash(resolved.Ppath, algoName, start, end)
	if err != nil {
		return Replyf(StatusActionNotTaken, fmt.Sprintf("%s: %v", resolved.Vpath, err))
	}

	firstLine := fmt.Sprintf("Computing %s digest", algoName)

	if customMode {
		return Replyf(StatusFileOK, fmt.Sprintf("%s\r\n%s", firstLine, digest))
	}

	return Replyf(StatusFileStatus,
		fmt.Sprintf("%s\r\n%s %d-%d %s %s", firstLine, algoName, start, end, digest, args[0]))
}

// computeHash streams [start, end) of the file at ppath through algoName's
// hash.Hash, via the same memory-mapped vfile.File every other read path
// uses.
func computeHash(ppath, algoName string, start, end int64) (string, error) {
	newHash, ok := hashAlgoNames[algoName]
	if !ok {
		return "", errUnknownHashAlgo
	}

	f, err := vfile.Open(ppath, vfile.OpRead)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if start > 0 {
		if err := f.Seek(start); err != nil {
			return "", err
		}
	}

	h := newHash()

	if _, err := io.CopyN(h, vfile.NewStream(f), end-start); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
