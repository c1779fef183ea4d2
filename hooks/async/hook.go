// Package asynchook moves hook delivery off the mirrors' hot path. Events are
// queued to a fixed pool of workers and dropped when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{UnchangedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	users, _ := hotmirror.NewSet(ctx, hotmirror.SetOptions[string]{
//	    Name:  "watching_users",
//	    Store: st,
//	    Codec: codec.String{},
//	    Hooks: hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/hotmirror"
)

type Hooks struct {
	inner   hotmirror.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ hotmirror.Hooks = (*Hooks)(nil)

func New(inner hotmirror.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// send on a queue closed concurrently with this call
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Reconciled(k string, v int64, n int) { h.try(func() { h.inner.Reconciled(k, v, n) }) }
func (h *Hooks) VersionUnchanged(k string, v int64)  { h.try(func() { h.inner.VersionUnchanged(k, v) }) }
func (h *Hooks) DecodeError(k string, err error)     { h.try(func() { h.inner.DecodeError(k, err) }) }
func (h *Hooks) ReconcileError(k string, err error)  { h.try(func() { h.inner.ReconcileError(k, err) }) }
func (h *Hooks) VersionParseError(k, raw string) {
	h.try(func() { h.inner.VersionParseError(k, raw) })
}
func (h *Hooks) WriteError(k, op string, err error) {
	h.try(func() { h.inner.WriteError(k, op, err) })
}
