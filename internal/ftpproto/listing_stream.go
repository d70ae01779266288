package ftpproto

import (
	"errors"
	"io"

	"github.com/jgaa/wfde/internal/listing"
)

// errListingIsReadOnly is returned by listingStream.Write: LIST/NLST/MLSD
// only ever send, never receive.
var errListingIsReadOnly = errors.New("ftpproto: listing transfer is outgoing-only")

// listingStream adapts a listing.Driver's chunked NextBatch output to the
// io.ReadWriteCloser the transfer pump expects (spec.md §4.3, §4.5).
type listingStream struct {
	driver *listing.Driver
	buf    []byte
	more   bool
	first  bool
}

func newListingStream(d *listing.Driver) *listingStream {
	return &listingStream{driver: d, more: true, first: true}
}

func (l *listingStream) Read(p []byte) (int, error) {
	for len(l.buf) == 0 {
		if !l.more && !l.first {
			return 0, io.EOF
		}

		l.first = false
		l.buf, l.more = l.driver.NextBatch()

		if len(l.buf) == 0 && !l.more {
			return 0, io.EOF
		}
	}

	n := copy(p, l.buf)
	l.buf = l.buf[n:]

	return n, nil
}

func (l *listingStream) Write([]byte) (int, error) { return 0, errListingIsReadOnly }

func (l *listingStream) Close() error { return nil }
