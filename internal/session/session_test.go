package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgaa/wfde/internal/vpath"
	"github.com/jgaa/wfde/internal/worker"
)

func pipeConn(t *testing.T) net.Conn {
	t.Helper()

	client, srv := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })

	return srv
}

func TestSessionTouchResetsIdleClock(t *testing.T) {
	sess := New(pipeConn(t), 0, vpath.NewPermissions())
	sess.SetIdleTimeout(10 * time.Millisecond)

	assert.True(t, sess.OnHousekeeping())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, sess.OnHousekeeping())

	sess.Touch()
	assert.True(t, sess.OnHousekeeping())
}

func TestSessionLoginReplacesPermissionsAndResetsCWD(t *testing.T) {
	sess := New(pipeConn(t), 0, vpath.NewPermissions())
	sess.SetCWD("/some/where")

	authed := vpath.NewPermissions()
	sess.Login(&Client{Username: "alice"}, authed)

	assert.Equal(t, "alice", sess.Client().Username)
	assert.Same(t, authed, sess.Permissions())
	assert.Equal(t, "/", sess.CWD())
}

func TestFTPStateResetAfterTransferPreservesLogin(t *testing.T) {
	st := NewFTPState()
	st.SetLoggedIn("bob")
	st.SetRest(100)
	st.BeginTransfer(TransferOutgoing)
	st.SetAbortPending(true)

	st.ResetAfterTransfer()

	assert.True(t, st.IsLoggedIn())
	assert.Equal(t, "bob", st.LoginName())
	assert.Equal(t, TransferNone, st.Transfer())
	assert.EqualValues(t, 0, st.Rest())
	assert.False(t, st.AbortPending())
}

func TestFTPStateDeferredTasksRunInOrder(t *testing.T) {
	st := NewFTPState()

	var order []int
	st.Defer(func() { order = append(order, 1) })
	st.Defer(func() { order = append(order, 2) })

	tasks := st.TakeDeferred()
	require.Len(t, tasks, 2)

	for _, fn := range tasks {
		fn()
	}

	assert.Equal(t, []int{1, 2}, order)
	assert.Empty(t, st.TakeDeferred())
}

func TestManagerRegisterLookupAndClose(t *testing.T) {
	pool := worker.NewPool(2)
	defer pool.Stop()

	mgr := NewManager(pool)

	sess := New(pipeConn(t), 0, vpath.NewPermissions())
	mgr.Register(sess)

	got, ok := mgr.Lookup(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)

	mgr.CloseSession(sess.ID())

	_, ok = mgr.Lookup(sess.ID())
	assert.False(t, ok)

	// Idempotent: closing again must not panic or error out loudly.
	mgr.CloseSession(sess.ID())
}

func TestManagerHousekeepingExpiresIdleSession(t *testing.T) {
	pool := worker.NewPool(1)
	defer pool.Stop()

	mgr := NewManager(pool)

	sess := New(pipeConn(t), 0, vpath.NewPermissions())
	sess.SetIdleTimeout(time.Millisecond)
	mgr.Register(sess)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := mgr.Lookup(sess.ID()); !ok {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("housekeeping never closed the idle session")
}
