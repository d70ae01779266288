package listing

import (
	"strconv"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/internal/vpath"
)

func TestDriverLISTSkipsHiddenByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/visible.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/home/.hidden", []byte("x"), 0o644))

	it, err := NewIterator(fs, "/home", "/home", vpath.NewPermissions())
	require.NoError(t, err)

	d := NewDriver(it, Options{Format: FormatLIST})
	buf, more := d.NextBatch()
	require.False(t, more)

	assert.Contains(t, string(buf), "visible.txt")
	assert.NotContains(t, string(buf), "hidden")
}

func TestDriverListHiddenWhenPermitted(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/.hidden", []byte("x"), 0o644))

	it, err := NewIterator(fs, "/home", "/home", vpath.NewPermissions())
	require.NoError(t, err)

	d := NewDriver(it, Options{Format: FormatNLST, ListHiddenFiles: true, CanSeeHidden: true})
	buf, more := d.NextBatch()
	require.False(t, more)
	assert.Contains(t, string(buf), ".hidden")
}

func TestDriverMLSDFacts(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/a.txt", []byte("hello"), 0o644))

	it, err := NewIterator(fs, "/home", "/home", vpath.NewPermissions())
	require.NoError(t, err)

	d := NewDriver(it, Options{Format: FormatMLSD, Facts: DefaultFacts})
	buf, more := d.NextBatch()
	require.False(t, more)

	out := string(buf)
	assert.Contains(t, out, "Type=file;")
	assert.Contains(t, out, "Size=5;")
	assert.Contains(t, out, " a.txt\r\n")
}

func TestNewUniqueOfDistinguishesSameBasename(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a/same.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/same.txt", []byte("y"), 0o644))

	infoA, err := fs.Stat("/a/same.txt")
	require.NoError(t, err)
	infoB, err := fs.Stat("/b/same.txt")
	require.NoError(t, err)

	entryA := Entry{Name: "same.txt", Info: infoA}
	entryB := Entry{Name: "same.txt", Info: infoB}

	uniqueA := NewUniqueOf("session-1", "/a")(entryA)
	uniqueB := NewUniqueOf("session-1", "/b")(entryB)
	assert.NotEqual(t, uniqueA, uniqueB)

	// Same entry, different session: still distinct (session-scoped token).
	uniqueOtherSession := NewUniqueOf("session-2", "/a")(entryA)
	assert.NotEqual(t, uniqueA, uniqueOtherSession)

	// Same entry, same session: stable across calls.
	assert.Equal(t, uniqueA, NewUniqueOf("session-1", "/a")(entryA))
}

func TestDriverInjectsVirtualMountWithDefaultDirStat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home", 0o755))

	perms := vpath.NewPermissions()
	require.NoError(t, perms.AddPath(vpath.New("/home/incoming", "/var/uploads", vpath.DefaultPubUploadPermissions(), vpath.TypeDirectory)))

	it, err := NewIterator(fs, "/home", "/home", perms)
	require.NoError(t, err)

	d := NewDriver(it, Options{Format: FormatLIST})
	buf, _ := d.NextBatch()

	assert.Contains(t, string(buf), "incoming")
	assert.Contains(t, string(buf), "drwxr-xr-x 1 ftp ftp        1 Jan  1  1970 incoming\r\n")
}

func TestDriverResumesAcrossBatches(t *testing.T) {
	fs := afero.NewMemMapFs()
	for i := 0; i < 2000; i++ {
		require.NoError(t, afero.WriteFile(fs, "/home/f"+string(rune('a'+i%26))+"-"+strconv.Itoa(i), []byte("x"), 0o644))
	}

	it, err := NewIterator(fs, "/home", "/home", vpath.NewPermissions())
	require.NoError(t, err)

	d := NewDriver(it, Options{Format: FormatNLST})

	total := 0
	for {
		buf, more := d.NextBatch()
		total += len(buf)

		if !more {
			break
		}
	}

	assert.Greater(t, total, BatchSize)
}

func TestPermStringDirectory(t *testing.T) {
	p := vpath.New("/home", "/var/home", vpath.DefaultHomePermissions(), vpath.TypeDirectory)
	s := PermString(p)
	assert.Contains(t, s, "e")
}

