package netio

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxCommandLine is the hard cap on an unterminated control line (spec.md
// §4.4): 16 KiB without a CRLF ends the session; the control loop replies
// 421 before closing.
const MaxCommandLine = 16 * 1024

// ErrLineTooLong is returned once MaxCommandLine bytes have been buffered
// without finding a CRLF terminator.
var ErrLineTooLong = errors.New("netio: control line exceeded 16 KiB without a CRLF terminator")

// LineReader reads CRLF-terminated FTP control lines one at a time,
// enforcing MaxCommandLine.
type LineReader struct {
	r   *bufio.Reader
	buf []byte
}

// NewLineReader wraps r with a line-oriented control-channel reader.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the next line with its CRLF (or bare LF) trimmed.
func (lr *LineReader) ReadLine() (string, error) {
	lr.buf = lr.buf[:0]

	for {
		frag, err := lr.r.ReadSlice('\n')
		lr.buf = append(lr.buf, frag...)

		if len(lr.buf) > MaxCommandLine {
			return "", ErrLineTooLong
		}

		if err == nil {
			break
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		return "", err
	}

	return strings.TrimRight(string(lr.buf), "\r\n"), nil
}
