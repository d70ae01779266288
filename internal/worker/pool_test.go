package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAssignRoundRobin(t *testing.T) {
	p := NewPool(3)
	defer p.Stop()

	w0 := p.Assign()
	w1 := p.Assign()
	w2 := p.Assign()
	w3 := p.Assign()

	assert.NotSame(t, w0, w1)
	assert.NotSame(t, w1, w2)
	assert.Same(t, w0, w3)
}

func TestWorkerPostRunsOnOwnGoroutine(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	w := p.Assign()

	done := make(chan struct{})
	w.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted task never ran")
	}
}

type fakeHousekeeper struct {
	id    string
	alive bool
}

func (f *fakeHousekeeper) ID() string           { return f.id }
func (f *fakeHousekeeper) OnHousekeeping() bool { return f.alive }

func TestWorkerExpiresIdleHousekeeper(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	w := p.Assign()
	h := &fakeHousekeeper{id: "sess-1", alive: false}

	var (
		mu      sync.Mutex
		expired string
	)

	done := make(chan struct{})
	w.Register(h, func(id string) {
		mu.Lock()
		expired = id
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("housekeeping never expired the idle session")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "sess-1", expired)
}
