package vfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASCIIFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")

	payload := []byte("line1\r\nline2\r\n\r\nline4")

	w, err := Open(path, OpWriteNew)
	require.NoError(t, err)

	aw := NewASCIIFile(w)

	n, err := aw.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, aw.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n\nline4", string(got))

	r, err := Open(path, OpRead)
	require.NoError(t, err)

	ar := NewASCIIFile(r)
	defer ar.Close()

	buf := make([]byte, 256)
	total := 0

	for {
		n, err := ar.Read(buf[total:])
		total += n

		if err != nil {
			break
		}

		if n == 0 {
			break
		}
	}

	assert.Equal(t, string(payload), string(buf[:total]))
}

func TestASCIIFileWrite_CRLFSplitAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "split")

	w, err := Open(path, OpWriteNew)
	require.NoError(t, err)

	aw := NewASCIIFile(w)

	n, err := aw.Write([]byte("line1\r"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = aw.Write([]byte("\nline2\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	require.NoError(t, aw.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(got))
}

func TestASCIIFileWrite_TrailingLoneCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lonecr")

	w, err := Open(path, OpWriteNew)
	require.NoError(t, err)

	aw := NewASCIIFile(w)

	_, err = aw.Write([]byte("line1\r"))
	require.NoError(t, err)
	require.NoError(t, aw.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line1\r", string(got))
}
