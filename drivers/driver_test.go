package drivers

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/entity"
	"github.com/jgaa/wfde/internal/vpath"
)

func buildTestHost(t *testing.T) *entity.Host {
	t.Helper()

	srv := entity.NewServer("srv")
	host, err := srv.AddHost("host1")
	require.NoError(t, err)

	perms := vpath.NewPermissions()
	require.NoError(t, perms.AddPath(vpath.New("/alice", "/srv/alice", vpath.DefaultHomePermissions(), vpath.TypeDirectory)))
	host.SetPermissions(perms)

	return host
}

func TestAuthenticate_Success(t *testing.T) {
	d := &AferoDriver{
		Host: buildTestHost(t),
		Fs:   afero.NewMemMapFs(),
		Accounts: []Account{
			{User: "alice", Pass: "secret", Home: "/alice"},
		},
	}

	client, perms, err := d.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", client.Username)
	require.NotNil(t, client.Home)
	assert.Equal(t, "/srv/alice", client.Home.PhysicalPath())

	p, _, err := perms.GetPath("/alice")
	require.NoError(t, err)
	assert.True(t, p.Can(vpath.CanWrite))
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	d := &AferoDriver{
		Host:     buildTestHost(t),
		Fs:       afero.NewMemMapFs(),
		Accounts: []Account{{User: "alice", Pass: "secret", Home: "/alice"}},
	}

	_, _, err := d.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBanner_DefaultsToHostName(t *testing.T) {
	d := &AferoDriver{Host: buildTestHost(t), Fs: afero.NewMemMapFs()}
	assert.Contains(t, d.Banner(), "host1")
}

func TestBanner_Override(t *testing.T) {
	d := &AferoDriver{Host: buildTestHost(t), Fs: afero.NewMemMapFs(), BannerFn: "custom banner"}
	assert.Equal(t, "custom banner", d.Banner())
}

func TestChmod(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f.txt", []byte("x"), 0o644))

	d := &AferoDriver{Host: buildTestHost(t), Fs: fs}
	require.NoError(t, d.Chmod("/f.txt", 0o600))
}

func TestSymlink_UnsupportedOnMemMapFs(t *testing.T) {
	d := &AferoDriver{Host: buildTestHost(t), Fs: afero.NewMemMapFs()}
	err := d.Symlink("/a", "/b")
	assert.ErrorIs(t, err, ErrSymlinkNotImplemented)
}

func TestTLSConfig_GeneratesSelfSignedCert(t *testing.T) {
	d := &AferoDriver{Host: buildTestHost(t), Fs: afero.NewMemMapFs()}

	cfg, err := d.TLSConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	cfg2, err := d.TLSConfig()
	require.NoError(t, err)
	assert.Same(t, cfg, cfg2)
}
