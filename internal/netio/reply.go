package netio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReplyWriter formats and flushes FTP control-channel replies, including
// multi-line replies (spec.md §4.4).
type ReplyWriter struct {
	w *bufio.Writer
}

// NewReplyWriter wraps w.
func NewReplyWriter(w io.Writer) *ReplyWriter {
	return &ReplyWriter{w: bufio.NewWriter(w)}
}

// WriteLine sends one raw CRLF-terminated line and flushes immediately -
// every FTP reply must reach the client before the handler returns control
// to the command loop.
func (rw *ReplyWriter) WriteLine(line string) error {
	if _, err := rw.w.WriteString(line); err != nil {
		return err
	}

	if _, err := rw.w.WriteString("\r\n"); err != nil {
		return err
	}

	return rw.w.Flush()
}

// WriteReply sends a (possibly multi-line) reply with code. Every line but
// the last uses "code-text"; the last uses "code text" (RFC 959 §4.2).
func (rw *ReplyWriter) WriteReply(code int, message string) error {
	lines := messageLines(message)

	for idx, line := range lines {
		sep := " "
		if idx < len(lines)-1 {
			sep = "-"
		}

		if err := rw.WriteLine(fmt.Sprintf("%d%s%s", code, sep, line)); err != nil {
			return err
		}
	}

	return nil
}

// BeginMultiline writes the opening line of a multi-line reply and returns
// a function that writes its closing "code End" line.
func (rw *ReplyWriter) BeginMultiline(code int, message string) func() error {
	_ = rw.WriteLine(fmt.Sprintf("%d-%s", code, message))

	return func() error {
		return rw.WriteLine(fmt.Sprintf("%d End", code))
	}
}

func messageLines(message string) []string {
	var lines []string

	sc := bufio.NewScanner(strings.NewReader(message))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	if len(lines) == 0 {
		lines = append(lines, "")
	}

	return lines
}
