package vfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")

	w, err := Open(path, OpWriteNew)
	require.NoError(t, err)

	payload := []byte("ABCD")
	buf, err := w.Write(len(payload))
	require.NoError(t, err)
	n := copy(buf, payload)
	w.SetBytesWritten(int64(n))
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), info.Size())

	r, err := Open(path, OpRead)
	require.NoError(t, err)

	defer r.Close()

	out, err := r.Read(len(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestFileWriteNewRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Open(path, OpWriteNew)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestFileReadRequiresExisting(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing"), OpRead)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileWriteTruncatesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(path, []byte("previous contents"), 0o644))

	w, err := Open(path, OpWrite)
	require.NoError(t, err)

	payload := []byte("new")
	buf, err := w.Write(len(payload))
	require.NoError(t, err)
	n := copy(buf, payload)
	w.SetBytesWritten(int64(n))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFileAppendPreservesContentsAndSeeksToEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(path, []byte("hello "), 0o644))

	w, err := Open(path, OpAppend)
	require.NoError(t, err)

	payload := []byte("world")
	buf, err := w.Write(len(payload))
	require.NoError(t, err)
	n := copy(buf, payload)
	w.SetBytesWritten(int64(n))
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestFileCloseTruncatesDirtyShortWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")

	w, err := Open(path, OpWriteNew)
	require.NoError(t, err)

	// Ask for a big buffer (forces growth past the logical payload) then
	// only claim a handful of bytes were actually written.
	buf, err := w.Write(1 << 20)
	require.NoError(t, err)
	require.True(t, len(buf) >= 5)

	n := copy(buf, []byte("hello"))
	w.SetBytesWritten(int64(n))
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size(), "physical size must equal the logical end of file on close")
}

func TestFileReadOnlyNeverResizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	r, err := Open(path, OpRead)
	require.NoError(t, err)

	defer r.Close()

	_, err = r.Read(4)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 10, info.Size())
}
