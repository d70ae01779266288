// Package worker implements the fixed-size worker pool that pins every
// session to a single goroutine for its whole lifetime (spec.md §5
// "Scheduling model"): one accepted connection, one worker, one
// single-threaded reactor for reads, writes, transfer loops and
// housekeeping.
package worker

import (
	"sync/atomic"
	"time"
)

// Task is a unit of work posted to a worker's own goroutine.
type Task func()

// Housekeeper is polled on every housekeeping tick. OnHousekeeping reports
// whether the holder is still alive; it returns false once its idle timeout
// has elapsed (spec.md §4.8).
type Housekeeper interface {
	ID() string
	OnHousekeeping() bool
}

// housekeepingInterval is the per-worker stub tick (spec.md §4.8: "a
// periodic (3 s) housekeeping timer").
const housekeepingInterval = 3 * time.Second

type regOp struct {
	add      bool
	h        Housekeeper
	onExpire func(id string)
	id       string
}

// Worker runs one single-threaded task loop. Everything belonging to a
// session pinned to this worker - reads, writes, transfer pumps,
// housekeeping - executes here and only here.
type Worker struct {
	id    int
	tasks chan Task
	reg   chan regOp
	done  chan struct{}
}

func newWorker(id int) *Worker {
	w := &Worker{
		id:    id,
		tasks: make(chan Task, 64),
		reg:   make(chan regOp, 16),
		done:  make(chan struct{}),
	}

	go w.run()

	return w
}

// Post enqueues fn to run on the worker's own goroutine. Safe to call from
// any goroutine.
func (w *Worker) Post(fn Task) {
	select {
	case w.tasks <- fn:
	case <-w.done:
	}
}

// Register pins h to this worker's housekeeping stub. onExpire fires, on the
// worker's own goroutine, once OnHousekeeping reports the holder has gone
// idle past its timeout; the manager uses it to call CloseSession.
func (w *Worker) Register(h Housekeeper, onExpire func(id string)) {
	select {
	case w.reg <- regOp{add: true, h: h, onExpire: onExpire, id: h.ID()}:
	case <-w.done:
	}
}

// Unregister drops id from the stub, e.g. once its session has closed.
func (w *Worker) Unregister(id string) {
	select {
	case w.reg <- regOp{id: id}:
	case <-w.done:
	}
}

func (w *Worker) run() {
	sessions := make(map[string]regOp)

	var ticker *time.Ticker

	var tickC <-chan time.Time

	stopTicker := func() {
		if ticker == nil {
			return
		}

		ticker.Stop()

		ticker = nil
		tickC = nil
	}

	defer stopTicker()

	for {
		select {
		case fn := <-w.tasks:
			fn()

		case op := <-w.reg:
			if op.add {
				sessions[op.id] = op

				if ticker == nil {
					ticker = time.NewTicker(housekeepingInterval)
					tickC = ticker.C
				}

				continue
			}

			delete(sessions, op.id)

			if len(sessions) == 0 {
				stopTicker()
			}

		case <-tickC:
			for id, op := range sessions {
				if op.h.OnHousekeeping() {
					continue
				}

				delete(sessions, id)

				if len(sessions) == 0 {
					stopTicker()
				}

				op.onExpire(id)
			}

		case <-w.done:
			return
		}
	}
}

// Stop terminates the worker's goroutine. Already-queued tasks are dropped.
func (w *Worker) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

// Pool is a fixed-size set of workers. New connections are handed to workers
// round-robin (spec.md §5).
type Pool struct {
	workers []*Worker
	next    uint64
}

// NewPool starts size workers, each with its own goroutine.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{workers: make([]*Worker, size)}

	for i := range p.workers {
		p.workers[i] = newWorker(i)
	}

	return p
}

// Assign returns the next worker in round-robin order.
func (p *Pool) Assign() *Worker {
	_, w := p.AssignWithIndex()

	return w
}

// AssignWithIndex is Assign plus the worker's position in the pool, for
// callers (entity.Acceptor) that must remember it to re-pin housekeeping later
// via At.
func (p *Pool) AssignWithIndex() (int, *Worker) {
	idx := atomic.AddUint64(&p.next, 1) - 1
	i := int(idx % uint64(len(p.workers)))

	return i, p.workers[i]
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int { return len(p.workers) }

// At returns the worker at idx, the same one Assign handed out when it
// returned that index's position in the round-robin cycle. Used to pin a
// session's housekeeping stub to the worker it was created on.
func (p *Pool) At(idx int) *Worker { return p.workers[idx%len(p.workers)] }

// Stop shuts down every worker in the pool.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}
