package listing

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"github.com/jgaa/wfde/internal/vpath"
)

// Format selects a directory-listing rendering (spec.md §4.3).
type Format int

// Supported listing formats.
const (
	FormatLIST Format = iota // long format, approximates "ls -l"
	FormatNLST                // name-only
	FormatMLSD                // RFC 3659 machine-readable facts
)

// BatchSize is the target size of one chunked listing buffer (16 KiB,
// spec.md §4.3).
const BatchSize = 16 * 1024

const (
	dateFormatRecent = "Jan _2 15:04"
	dateFormatOld    = "Jan _2  2006"
	dateFormatMLSD   = "20060102150405"
	halfYear         = time.Hour * 24 * 30 * 6
)

// Facts is the MLST/MLSD fact bitmap (spec.md §3 "MDTX/MLST facts bitmap").
type Facts uint8

// Supported facts.
const (
	FactType Facts = 1 << iota
	FactModify
	FactSize
	FactUnique
	FactPerm
)

// DefaultFacts enables every supported fact.
const DefaultFacts = FactType | FactModify | FactSize | FactUnique | FactPerm

func (f Facts) has(bit Facts) bool { return f&bit != 0 }

// Options controls a single listing pass.
type Options struct {
	Format          Format
	ListHiddenFiles bool // set by "LIST -a"
	CanSeeHidden    bool // CAN_SEE_HIDDEN_FILES/DIRS on the current path
	Facts           Facts
	Now             time.Time // reference time for the recent/old date-format switch
	// UniqueOf returns the stable MLST "Unique" token for an entry; the
	// session supplies a session-scoped salted implementation rather than
	// leaking raw inode numbers (spec.md §9 Open Questions).
	UniqueOf func(Entry) string
	// PermOf returns the RFC 3659 "Perm" fact subset for the mount
	// governing an entry.
	PermOf func(Entry) string
}

// Driver drives one or more batches out of an Iterator, applying hidden-file
// filtering and returning 16 KiB-ish chunks with a "more to come" flag so
// the caller can pump them onto the data connection incrementally.
type Driver struct {
	it   *Iterator
	opts Options
}

// NewDriver builds a listing driver over it with opts.
func NewDriver(it *Iterator, opts Options) *Driver {
	if opts.UniqueOf == nil {
		opts.UniqueOf = func(e Entry) string { return fmt.Sprintf("%x", hashName(e.Name)) }
	}

	if opts.PermOf == nil {
		opts.PermOf = func(Entry) string { return "" }
	}

	return &Driver{it: it, opts: opts}
}

// NextBatch renders entries into a buffer of at most BatchSize bytes,
// resuming from wherever the previous call left off. It returns the
// rendered bytes and whether more entries remain.
func (d *Driver) NextBatch() ([]byte, bool) {
	buf := make([]byte, 0, BatchSize)

	for {
		startPos := d.it.Pos()

		entry, ok := d.it.Next()
		if !ok {
			return buf, false
		}

		if d.skip(entry) {
			continue
		}

		rendered := d.render(entry)

		if len(buf)+len(rendered) > BatchSize && len(buf) > 0 {
			d.it.Reset(startPos)

			return buf, true
		}

		buf = append(buf, rendered...)
	}
}

// skip reports whether a hidden entry should be excluded: anything whose
// name starts with "." is hidden unless it is exactly "." or ".." or the
// caller both asked to see hidden files (LIST -a) and the current path
// grants CAN_SEE_HIDDEN_FILES/DIRS (spec.md §8).
func (d *Driver) skip(e Entry) bool {
	if len(e.Name) == 0 || e.Name[0] != '.' {
		return false
	}

	if e.Name == "." || e.Name == ".." {
		return false
	}

	return !(d.opts.ListHiddenFiles && d.opts.CanSeeHidden)
}

func (d *Driver) render(e Entry) []byte {
	switch d.opts.Format {
	case FormatNLST:
		return []byte(e.Name + "\r\n")
	case FormatMLSD:
		return d.renderMLSx(e)
	default:
		return d.renderLIST(e)
	}
}

func (d *Driver) renderLIST(e Entry) []byte {
	now := d.opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	prefix := "-rw-r--r-- 1 ftp ftp "
	sizeField := fmt.Sprintf("%8d ", e.Info.Size())

	if e.Info.IsDir() {
		prefix = "drwxr-xr-x 1 ftp ftp "
		sizeField = "       1 "
	}

	dateFormat := dateFormatRecent
	if now.Sub(e.Info.ModTime()) > halfYear {
		dateFormat = dateFormatOld
	}

	return []byte(fmt.Sprintf("%s%s%s %s\r\n", prefix, sizeField, e.Info.ModTime().UTC().Format(dateFormat), e.Name))
}

func (d *Driver) renderMLSx(e Entry) []byte {
	return RenderMLSxFact(e, d.opts)
}

// RenderMLSxFact renders a single RFC 3659 fact line for e under opts,
// shared between MLSD's batch driver and MLST's single-entry reply
// (spec.md §4.3).
func RenderMLSxFact(e Entry, opts Options) []byte {
	out := make([]byte, 0, 128+len(e.Name))
	out = append(out, ' ')

	if opts.Facts.has(FactType) {
		out = append(out, "Type="...)
		out = append(out, mlsdType(e)...)
		out = append(out, ';')
	}

	if opts.Facts.has(FactModify) {
		out = append(out, "Modify="...)
		out = append(out, e.Info.ModTime().UTC().Format(dateFormatMLSD)...)
		out = append(out, ';')
	}

	if opts.Facts.has(FactSize) {
		out = append(out, fmt.Sprintf("Size=%d;", e.Info.Size())...)
	}

	if opts.Facts.has(FactUnique) {
		if opts.UniqueOf == nil {
			opts.UniqueOf = func(Entry) string { return "" }
		}

		out = append(out, "Unique="...)
		out = append(out, opts.UniqueOf(e)...)
		out = append(out, ';')
	}

	if opts.Facts.has(FactPerm) {
		perm := ""
		if opts.PermOf != nil {
			perm = opts.PermOf(e)
		}

		if e.IsVirtual && !containsByte(perm, 'e') {
			perm += "e"
		}

		out = append(out, "Perm="...)
		out = append(out, perm...)
		out = append(out, ';')
	}

	out = append(out, ' ')
	out = append(out, e.Name...)
	out = append(out, '\r', '\n')

	return out
}

func mlsdType(e Entry) string {
	if e.Info.IsDir() {
		switch e.Name {
		case ".":
			return "cdir"
		case "..":
			return "pdir"
		default:
			return "dir"
		}
	}

	return "file"
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}

	return false
}

func hashName(s string) uint32 {
	var h uint32 = 2166136261

	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}

	return h
}

// NewUniqueOf builds a session-salted MLST "Unique" fact generator
// (spec.md §4.3, §9 Open Questions): the token mixes sessionID and the
// entry's governing directory path with its (device, inode) pair — read
// from os.FileInfo.Sys() where the filesystem exposes one — so that two
// files sharing a basename in different directories, mounts, or sessions
// never collide. Falls back to dirVpath+Name on filesystems (e.g. an
// afero in-memory Fs in tests) with no stat-level device/inode exposed.
func NewUniqueOf(sessionID, dirVpath string) func(Entry) string {
	return func(e Entry) string {
		h := fnv.New64a()
		_, _ = io.WriteString(h, sessionID)
		h.Write([]byte{0})
		_, _ = io.WriteString(h, dirVpath)
		h.Write([]byte{0})

		if dev, ino, ok := deviceInode(e.Info); ok {
			var b [16]byte
			binary.BigEndian.PutUint64(b[:8], dev)
			binary.BigEndian.PutUint64(b[8:], ino)
			h.Write(b[:])
		} else {
			_, _ = io.WriteString(h, e.Name)
		}

		return fmt.Sprintf("%x", h.Sum64())
	}
}

// PermString derives the RFC 3659 "Perm" fact subset from a mount's
// permission bits (spec.md §4.3): for directories, c<-CreateFile,
// d<-DeleteDir, e<-Enter, m<-CreateDir, p<-(DeleteFile|DeleteDir); for
// files, a<-Write, d<-DeleteFile, r<-Read, w<-Write; f<-Rename on either.
func PermString(p *vpath.Path) string {
	var out []byte

	if p.Type() == vpath.TypeDirectory || p.Type() == vpath.TypeAny {
		if p.Can(vpath.CanCreateFile) {
			out = append(out, 'c')
		}

		if p.Can(vpath.CanDeleteDir) {
			out = append(out, 'd')
		}

		if p.Can(vpath.CanEnter) {
			out = append(out, 'e')
		}

		if p.Can(vpath.CanCreateDir) {
			out = append(out, 'm')
		}

		if p.Can(vpath.CanDeleteFile) || p.Can(vpath.CanDeleteDir) {
			out = append(out, 'p')
		}
	}

	if p.Type() == vpath.TypeFile || p.Type() == vpath.TypeAny {
		if p.Can(vpath.CanWrite) {
			out = append(out, 'a')
		}

		if p.Can(vpath.CanDeleteFile) {
			out = append(out, 'd')
		}

		if p.Can(vpath.CanRead) {
			out = append(out, 'r')
		}

		if p.Can(vpath.CanWrite) {
			out = append(out, 'w')
		}
	}

	if p.Can(vpath.CanRename) {
		out = append(out, 'f')
	}

	return string(out)
}
