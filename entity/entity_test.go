package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/internal/vpath"
)

func mountSet(t *testing.T, vp, pp string, bits vpath.PermBits) *vpath.Permissions {
	t.Helper()

	perms := vpath.NewPermissions()
	require.NoError(t, perms.AddPath(vpath.New(vp, pp, bits|vpath.IsRecursive, vpath.TypeDirectory)))

	return perms
}

func TestNodeTypeString(t *testing.T) {
	assert.Equal(t, "Server", TypeServer.String())
	assert.Equal(t, "Host", TypeHost.String())
	assert.Equal(t, "Protocol", TypeProtocol.String())
	assert.Equal(t, "Interface", TypeInterface.String())
	assert.Equal(t, "Unknown", Type(99).String())
}

func TestEffectivePermissions_RootOnly(t *testing.T) {
	srv := NewServer("srv")
	srv.SetPermissions(mountSet(t, "/", "/srv/data", vpath.CanRead|vpath.CanList|vpath.CanEnter))

	eff := srv.EffectivePermissions()

	path, rest, err := eff.GetPath("/")
	require.NoError(t, err)
	assert.Equal(t, "", rest)
	assert.True(t, path.Can(vpath.CanRead))
}

func TestEffectivePermissions_ChildFillsFromAncestors(t *testing.T) {
	srv := NewServer("srv")
	srv.SetPermissions(mountSet(t, "/pub", "/srv/pub", vpath.CanRead|vpath.CanList|vpath.CanEnter))

	host, err := srv.AddHost("host1")
	require.NoError(t, err)
	host.SetPermissions(mountSet(t, "/home", "/srv/home", vpath.CanRead|vpath.CanWrite|vpath.CanList|vpath.CanEnter))

	proto, err := host.AddProtocol("ftp")
	require.NoError(t, err)

	iface, err := proto.AddInterface("eth0", ":2121")
	require.NoError(t, err)

	eff := iface.EffectivePermissions()

	// Interface defines nothing locally, so it must see both ancestor mounts.
	pubPath, _, err := eff.GetPath("/pub")
	require.NoError(t, err)
	assert.True(t, pubPath.Can(vpath.CanRead))

	homePath, _, err := eff.GetPath("/home")
	require.NoError(t, err)
	assert.True(t, homePath.Can(vpath.CanWrite))
}

func TestEffectivePermissions_OwnScopeWinsOnConflict(t *testing.T) {
	srv := NewServer("srv")
	srv.SetPermissions(mountSet(t, "/data", "/srv/data", vpath.CanRead|vpath.CanList|vpath.CanEnter))

	host, err := srv.AddHost("host1")
	require.NoError(t, err)
	// Same vpath as the server's mount, but read-only becomes read-write here.
	host.SetPermissions(mountSet(t, "/data", "/host1/data", vpath.CanRead|vpath.CanWrite|vpath.CanList|vpath.CanEnter))

	eff := host.EffectivePermissions()

	path, _, err := eff.GetPath("/data")
	require.NoError(t, err)
	assert.True(t, path.Can(vpath.CanWrite))
	assert.Equal(t, "/host1/data", path.PhysicalPath())
}

func TestEffectivePermissions_NoLocalScope(t *testing.T) {
	srv := NewServer("srv")

	host, err := srv.AddHost("host1")
	require.NoError(t, err)

	eff := host.EffectivePermissions()
	assert.Empty(t, eff.Paths())
}

func TestAddHost_DuplicateName(t *testing.T) {
	srv := NewServer("srv")

	_, err := srv.AddHost("host1")
	require.NoError(t, err)

	_, err = srv.AddHost("host1")
	require.Error(t, err)

	var dup *ErrDuplicateChild
	assert.ErrorAs(t, err, &dup)
}

func TestAddProtocol_DuplicateName(t *testing.T) {
	srv := NewServer("srv")
	host, err := srv.AddHost("host1")
	require.NoError(t, err)

	_, err = host.AddProtocol("ftp")
	require.NoError(t, err)

	_, err = host.AddProtocol("ftp")
	require.Error(t, err)
}

func TestAddInterface_DuplicateName(t *testing.T) {
	srv := NewServer("srv")
	host, err := srv.AddHost("host1")
	require.NoError(t, err)
	proto, err := host.AddProtocol("ftp")
	require.NoError(t, err)

	_, err = proto.AddInterface("eth0", ":2121")
	require.NoError(t, err)

	_, err = proto.AddInterface("eth0", ":2122")
	require.Error(t, err)
}

func TestTreeWalk(t *testing.T) {
	srv := NewServer("srv")
	host, err := srv.AddHost("host1")
	require.NoError(t, err)
	proto, err := host.AddProtocol("ftp")
	require.NoError(t, err)
	iface, err := proto.AddInterface("eth0", ":2121")
	require.NoError(t, err)

	require.Len(t, srv.Hosts(), 1)
	require.Len(t, host.Protocols(), 1)
	require.Len(t, proto.Interfaces(), 1)
	assert.Equal(t, ":2121", iface.ListenAddr())
	assert.True(t, iface.HasParent())
	assert.False(t, srv.HasParent())
}
