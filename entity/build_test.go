package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/configtree"
	"github.com/jgaa/wfde/internal/vpath"
)

// memTree is a minimal in-memory configtree.Tree double for exercising Build
// without pulling viper into this package's tests.
type memTree struct {
	values map[string]string
	subs   map[string]*memTree
	order  []string
}

func newMemTree() *memTree {
	return &memTree{values: map[string]string{}, subs: map[string]*memTree{}}
}

func (t *memTree) set(path, value string) {
	t.values[path] = value
}

func (t *memTree) child(name string) *memTree {
	c, ok := t.subs[name]
	if !ok {
		c = newMemTree()
		t.subs[name] = c
		t.order = append(t.order, name)
	}

	return c
}

func (t *memTree) EnumNodes(path string) []string {
	if path == "" {
		out := make([]string, len(t.order))
		copy(out, t.order)

		return out
	}

	sub, ok := t.subs[path]
	if !ok {
		return nil
	}

	out := make([]string, len(sub.order))
	copy(out, sub.order)

	return out
}

func (t *memTree) GetValue(path, def string) string {
	if v, ok := t.values[path]; ok {
		return v
	}

	return def
}

func (t *memTree) Sub(path string) configtree.Tree {
	sub, ok := t.subs[path]
	if !ok {
		return nil
	}

	return sub
}

func TestBuild_SimpleTree(t *testing.T) {
	root := newMemTree()
	root.set("Name", "myserver")

	mounts := root.child("Mounts")
	pub := mounts.child("pub")
	pub.set("Vpath", "/")
	pub.set("Ppath", "/srv/pub")
	pub.set("Perms", "CAN_READ,CAN_LIST,CAN_ENTER,IS_RECURSIVE")

	hosts := root.child("Hosts")
	host1 := hosts.child("host1")

	protocols := host1.child("Protocols")
	ftp := protocols.child("ftp")

	interfaces := ftp.child("Interfaces")
	eth0 := interfaces.child("eth0")
	eth0.set("Listen", "0.0.0.0:2121")

	srv, err := Build(root)
	require.NoError(t, err)
	assert.Equal(t, "myserver", srv.Name())

	require.Len(t, srv.Hosts(), 1)
	host := srv.Hosts()[0]
	assert.Equal(t, "host1", host.Name())

	require.Len(t, host.Protocols(), 1)
	proto := host.Protocols()[0]
	assert.Equal(t, "ftp", proto.Name())

	require.Len(t, proto.Interfaces(), 1)
	iface := proto.Interfaces()[0]
	assert.Equal(t, "eth0", iface.Name())
	assert.Equal(t, "0.0.0.0:2121", iface.ListenAddr())

	eff := iface.EffectivePermissions()
	p, _, err := eff.GetPath("/")
	require.NoError(t, err)
	assert.True(t, p.Can(vpath.CanRead))
}

func TestBuild_InterfaceAcceptorSettings(t *testing.T) {
	root := newMemTree()

	hosts := root.child("Hosts")
	host1 := hosts.child("host1")
	protocols := host1.child("Protocols")
	ftp := protocols.child("ftp")
	interfaces := ftp.child("Interfaces")
	eth0 := interfaces.child("eth0")
	eth0.set("Listen", "0.0.0.0:2121")
	eth0.set("PublicIP", "203.0.113.7")
	eth0.set("PasvPortStart", "50000")
	eth0.set("PasvPortEnd", "50100")
	eth0.set("Implicit", "true")

	srv, err := Build(root)
	require.NoError(t, err)

	iface := srv.Hosts()[0].Protocols()[0].Interfaces()[0]
	assert.Equal(t, "203.0.113.7", iface.PublicIP.String())
	require.NotNil(t, iface.PasvPortRange)
	assert.Equal(t, 50000, iface.PasvPortRange.Start)
	assert.Equal(t, 50100, iface.PasvPortRange.End)
	assert.True(t, iface.Implicit)
}

func TestBuild_InterfaceDefaultsNoAcceptorSettings(t *testing.T) {
	root := newMemTree()

	hosts := root.child("Hosts")
	host1 := hosts.child("host1")
	protocols := host1.child("Protocols")
	ftp := protocols.child("ftp")
	interfaces := ftp.child("Interfaces")
	eth0 := interfaces.child("eth0")
	eth0.set("Listen", "0.0.0.0:2121")

	srv, err := Build(root)
	require.NoError(t, err)

	iface := srv.Hosts()[0].Protocols()[0].Interfaces()[0]
	assert.Nil(t, iface.PublicIP)
	assert.Nil(t, iface.PasvPortRange)
	assert.False(t, iface.Implicit)
}

func TestBuild_NoHosts(t *testing.T) {
	root := newMemTree()
	root.set("Name", "empty")

	srv, err := Build(root)
	require.NoError(t, err)
	assert.Equal(t, "empty", srv.Name())
	assert.Empty(t, srv.Hosts())
}

func TestBuild_DefaultName(t *testing.T) {
	root := newMemTree()

	srv, err := Build(root)
	require.NoError(t, err)
	assert.Equal(t, "wfde", srv.Name())
}

func TestBuild_InvalidPermsPropagatesError(t *testing.T) {
	root := newMemTree()

	mounts := root.child("Mounts")
	bad := mounts.child("bad")
	bad.set("Perms", "NOT_A_REAL_BIT")

	_, err := Build(root)
	assert.Error(t, err)
}
